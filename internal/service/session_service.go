package service

import (
	"context"
	"time"

	"authmedia/internal/auth"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
	"authmedia/internal/repository"
)

// SessionService issues, validates and revokes opaque session tokens.
type SessionService interface {
	Create(ctx context.Context, userID, ipAddress, userAgent string) (*model.Session, error)
	Authenticate(ctx context.Context, token string) (*model.User, *model.Session, error)
	Refresh(ctx context.Context, session *model.Session) (*model.Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAsAdmin(ctx context.Context, current *model.Session, sessionID string) error
	RevokeUserSessions(ctx context.Context, current *model.Session, userID string) (int64, error)
	ListActive(ctx context.Context) ([]model.SessionWithUser, error)
}

type sessionService struct {
	store     repository.Store
	expiry    time.Duration
	updateAge time.Duration
	logger    logging.Logger
	now       func() time.Time
}

// NewSessionService creates sessions lasting expiry. Sessions older than
// updateAge are extended when read through Refresh.
func NewSessionService(store repository.Store, expiry, updateAge time.Duration, logger logging.Logger) SessionService {
	return &sessionService{
		store:     store,
		expiry:    expiry,
		updateAge: updateAge,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context, userID, ipAddress, userAgent string) (*model.Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, apperrors.Internal(err, "generate session token")
	}

	session := &model.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.expiry),
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, apperrors.Internal(err, "create session")
	}
	return session, nil
}

// Authenticate resolves a bearer token. Every call reads the database.
func (s *sessionService) Authenticate(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, apperrors.ErrUnauthenticated
	}

	session, err := s.store.Sessions().FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperrors.ErrInvalidSession
		}
		return nil, nil, apperrors.Internal(err, "load session")
	}
	now := s.now()
	if session.Expired(now) {
		return nil, nil, apperrors.ErrInvalidSession
	}

	user, err := s.store.Users().FindByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperrors.ErrInvalidSession
		}
		return nil, nil, apperrors.Internal(err, "load session user")
	}
	if err := enforceBan(ctx, s.store.Users(), user, now); err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Refresh extends a session once updateAge has passed since it was last
// issued or extended.
func (s *sessionService) Refresh(ctx context.Context, session *model.Session) (*model.Session, error) {
	now := s.now().UTC()
	issued := session.ExpiresAt.Add(-s.expiry)
	if now.Before(issued.Add(s.updateAge)) {
		return session, nil
	}

	expiresAt := now.Add(s.expiry)
	if err := s.store.Sessions().Extend(ctx, session.ID, expiresAt); err != nil {
		return nil, apperrors.Internal(err, "extend session")
	}
	session.ExpiresAt = expiresAt
	return session, nil
}

func (s *sessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.store.Sessions().Delete(ctx, sessionID); err != nil {
		if isNotFound(err) {
			return apperrors.ErrSessionNotFound
		}
		return apperrors.Internal(err, "delete session")
	}
	return nil
}

// RevokeAsAdmin deletes a session by id. The caller's own session is refused.
func (s *sessionService) RevokeAsAdmin(ctx context.Context, current *model.Session, sessionID string) error {
	if current != nil && current.ID == sessionID {
		return apperrors.ErrSelfRevoke
	}
	err := s.Revoke(ctx, sessionID)
	metrics.AuthEvents.WithLabelValues("revoke-session", metrics.Result(err)).Inc()
	if err == nil {
		s.logger.Info(ctx, "session revoked", "session_id", sessionID)
	}
	return err
}

// RevokeUserSessions deletes every session of a user, keeping the caller's own.
func (s *sessionService) RevokeUserSessions(ctx context.Context, current *model.Session, userID string) (int64, error) {
	except := ""
	if current != nil {
		except = current.ID
	}
	n, err := s.store.Sessions().DeleteByUser(ctx, userID, except)
	if err != nil {
		return 0, apperrors.Internal(err, "delete user sessions")
	}
	s.logger.Info(ctx, "user sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

func (s *sessionService) ListActive(ctx context.Context) ([]model.SessionWithUser, error) {
	rows, err := s.store.Sessions().ListActive(ctx, s.now())
	if err != nil {
		return nil, apperrors.Internal(err, "list sessions")
	}
	return rows, nil
}
