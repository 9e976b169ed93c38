package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"authmedia/internal/model"
)

// SessionRepository defines session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	FindByID(ctx context.Context, id string) (*model.Session, error)
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID, exceptID string) (int64, error)
	ListActive(ctx context.Context, now time.Time) ([]model.SessionWithUser, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	session.ExpiresAt = session.ExpiresAt.UTC()
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByToken looks a session up by exact token match. Expiry is left to the caller.
func (r *sessionRepository) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Extend moves the expiry of a session forward and bumps updatedAt.
func (r *sessionRepository) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Update("expiresAt", expiresAt.UTC()).Error
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByUser removes every session of userID except exceptID, which may be empty.
func (r *sessionRepository) DeleteByUser(ctx context.Context, userID, exceptID string) (int64, error) {
	q := r.db.WithContext(ctx).Where("userId = ?", userID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	res := q.Delete(&model.Session{})
	return res.RowsAffected, res.Error
}

// ListActive returns non-expired sessions joined with their owner, newest first.
func (r *sessionRepository) ListActive(ctx context.Context, now time.Time) ([]model.SessionWithUser, error) {
	var rows []model.SessionWithUser
	err := r.db.WithContext(ctx).
		Table("session AS s").
		Select(`s.id, s.token, s.userId, s.expiresAt, s.ipAddress, s.userAgent, s.createdAt, s.updatedAt,
			u.email AS userEmail, u.name AS userName, u.role AS userRole`).
		Joins("JOIN user AS u ON u.id = s.userId").
		Where("s.expiresAt > ?", now.UTC()).
		Order("s.createdAt DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
