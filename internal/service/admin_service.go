package service

import (
	"context"
	"strings"
	"time"

	"authmedia/internal/auth"
	"authmedia/internal/cache"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
	"authmedia/internal/repository"
)

const defaultBanReason = "No reason"

// CreateUserInput holds the fields of an admin-created user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput holds optional profile changes. Nil fields are kept.
type UpdateUserInput struct {
	Name          *string
	Email         *string
	EmailVerified *bool
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users  []model.User `json:"users"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// AdminService manages users on behalf of administrators.
type AdminService interface {
	ListUsers(ctx context.Context, filter repository.UserFilter) (*UserPage, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, userID string, in UpdateUserInput) (*model.User, error)
	SetRole(ctx context.Context, userID, role string) (*model.User, error)
	BanUser(ctx context.Context, actorID, userID, reason string, expiresIn time.Duration) (*model.User, error)
	UnbanUser(ctx context.Context, userID string) (*model.User, error)
	RemoveUser(ctx context.Context, actorID, userID string) error
	MakeAdmin(ctx context.Context, email string) (*model.User, error)
}

type adminService struct {
	store  repository.Store
	files  FileRemover
	cache  *cache.Client
	logger logging.Logger
	now    func() time.Time
}

// NewAdminService builds an AdminService. files removes the avatar files of
// deleted users.
func NewAdminService(store repository.Store, files FileRemover, cache *cache.Client, logger logging.Logger) AdminService {
	return &adminService{store: store, files: files, cache: cache, logger: logger, now: time.Now}
}

func (s *adminService) ListUsers(ctx context.Context, filter repository.UserFilter) (*UserPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	users, total, err := s.store.Users().List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err, "list users")
	}
	return &UserPage{Users: users, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *adminService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !validRole(role) {
		return nil, apperrors.ErrInvalidRole
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrUserAlreadyExists
	} else if !isNotFound(err) {
		return nil, apperrors.Internal(err, "check user existence")
	}

	user := &model.User{Name: strings.TrimSpace(in.Name), Email: email, Role: role}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return tx.Accounts().Create(ctx, &model.Account{
			AccountID:  user.ID,
			ProviderID: model.ProviderCredential,
			UserID:     user.ID,
			Password:   &hash,
		})
	})
	if err != nil {
		return nil, apperrors.Internal(err, "create user")
	}
	s.logger.Info(ctx, "user created by admin", "user_id", user.ID, "role", role)
	return user, nil
}

func (s *adminService) UpdateUser(ctx context.Context, userID string, in UpdateUserInput) (*model.User, error) {
	fields := map[string]interface{}{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		existing, err := s.store.Users().FindByEmail(ctx, email)
		if err == nil && existing.ID != userID {
			return nil, apperrors.ErrUserAlreadyExists
		}
		if err != nil && !isNotFound(err) {
			return nil, apperrors.Internal(err, "check user existence")
		}
		fields["email"] = email
	}
	if in.EmailVerified != nil {
		fields["emailVerified"] = *in.EmailVerified
	}
	if len(fields) == 0 {
		return findUser(ctx, s.store.Users(), userID)
	}
	return s.update(ctx, userID, fields)
}

func (s *adminService) SetRole(ctx context.Context, userID, role string) (*model.User, error) {
	if !validRole(role) {
		return nil, apperrors.ErrInvalidRole
	}
	return s.update(ctx, userID, map[string]interface{}{"role": role})
}

// BanUser bans a user and signs them out everywhere. A zero expiresIn bans
// permanently.
func (s *adminService) BanUser(ctx context.Context, actorID, userID, reason string, expiresIn time.Duration) (*model.User, error) {
	if actorID == userID {
		return nil, apperrors.ErrSelfAction
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultBanReason
	}
	fields := map[string]interface{}{
		"banned":       true,
		"banReason":    reason,
		"banExpiresAt": nil,
	}
	if expiresIn > 0 {
		fields["banExpiresAt"] = s.now().UTC().Add(expiresIn)
	}

	if _, err := findUser(ctx, s.store.Users(), userID); err != nil {
		return nil, err
	}
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().Update(ctx, userID, fields); err != nil {
			return err
		}
		_, err := tx.Sessions().DeleteByUser(ctx, userID, "")
		return err
	})
	metrics.AuthEvents.WithLabelValues("ban-user", metrics.Result(err)).Inc()
	if err != nil {
		return nil, apperrors.Internal(err, "ban user")
	}
	s.logger.Info(ctx, "user banned", "user_id", userID, "actor_id", actorID)
	return findUser(ctx, s.store.Users(), userID)
}

func (s *adminService) UnbanUser(ctx context.Context, userID string) (*model.User, error) {
	return s.update(ctx, userID, map[string]interface{}{
		"banned":       false,
		"banReason":    nil,
		"banExpiresAt": nil,
	})
}

// RemoveUser deletes a user. Sessions and accounts cascade; avatar rows and
// files are removed explicitly.
func (s *adminService) RemoveUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return apperrors.ErrSelfAction
	}
	user, err := findUser(ctx, s.store.Users(), userID)
	if err != nil {
		return err
	}

	var avatars []model.Media
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		rows, err := tx.Media().ListByUploader(ctx, userID, model.CategoryAvatar)
		if err != nil {
			return err
		}
		avatars = rows
		if _, err := tx.Media().DeleteByUploader(ctx, userID, model.CategoryAvatar); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, userID)
	})
	metrics.AuthEvents.WithLabelValues("remove-user", metrics.Result(err)).Inc()
	if err != nil {
		if isNotFound(err) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.Internal(err, "remove user")
	}

	if user.Avatar != nil && *user.Avatar != "" {
		s.files.DeleteProcessed(*user.Avatar, model.CategoryAvatar)
	}
	for _, row := range avatars {
		s.files.DeleteProcessed(row.Filename, model.CategoryAvatar)
	}
	_ = s.cache.Delete(ctx, avatarCacheKey(userID))
	s.logger.Info(ctx, "user removed", "user_id", userID, "actor_id", actorID)
	return nil
}

// MakeAdmin promotes the user with the given email.
func (s *adminService) MakeAdmin(ctx context.Context, email string) (*model.User, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err, "load user")
	}
	return s.SetRole(ctx, user.ID, model.RoleAdmin)
}

func (s *adminService) update(ctx context.Context, userID string, fields map[string]interface{}) (*model.User, error) {
	if err := s.store.Users().Update(ctx, userID, fields); err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err, "update user")
	}
	return findUser(ctx, s.store.Users(), userID)
}

func validRole(role string) bool {
	return role == model.RoleUser || role == model.RoleAdmin
}
