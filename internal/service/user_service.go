package service

import (
	"context"

	"authmedia/internal/model"
	"authmedia/internal/repository"
)

// Profile is the signed-in user's own view.
type Profile struct {
	*model.User
	AvatarURLs AvatarURLs `json:"avatarUrls"`
}

// UserService exposes domain operations.
type UserService interface {
	Me(ctx context.Context, userID string) (*Profile, error)
}

type userService struct {
	users repository.UserRepository
	urls  URLBuilder
}

// NewUserService builds a UserService with repository and URL builder.
func NewUserService(users repository.UserRepository, urls URLBuilder) UserService {
	return &userService{users: users, urls: urls}
}

// Me reloads the user so avatar fields reflect the latest upload.
func (s *userService) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, AvatarURLs: s.urls.avatarURLs(user)}, nil
}
