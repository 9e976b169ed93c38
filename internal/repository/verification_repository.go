package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"authmedia/internal/model"
)

// VerificationRepository stores short-lived tokens.
type VerificationRepository interface {
	Create(ctx context.Context, v *model.Verification) error
	FindByIdentifier(ctx context.Context, identifier string) (*model.Verification, error)
	DeleteByIdentifier(ctx context.Context, identifier string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *model.Verification) error {
	v.ExpiresAt = v.ExpiresAt.UTC()
	return r.db.WithContext(ctx).Create(v).Error
}

// FindByIdentifier returns the newest row for identifier.
func (r *verificationRepository) FindByIdentifier(ctx context.Context, identifier string) (*model.Verification, error) {
	var v model.Verification
	if err := r.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Order("createdAt DESC").
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	return r.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&model.Verification{}).Error
}

func (r *verificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expiresAt <= ?", now.UTC()).Delete(&model.Verification{})
	return res.RowsAffected, res.Error
}
