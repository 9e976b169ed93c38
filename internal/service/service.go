package service

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/model"
	"authmedia/internal/repository"
)

// URLBuilder turns stored relative paths into public URLs.
type URLBuilder struct {
	baseURL string
}

// NewURLBuilder serves files under <baseURL>/uploads.
func NewURLBuilder(baseURL string) URLBuilder {
	return URLBuilder{baseURL: baseURL}
}

// File maps a path relative to the storage root, such as media/a.jpg.
func (b URLBuilder) File(rel string) string {
	return b.baseURL + "/uploads/" + path.Clean(filepath.ToSlash(rel))
}

// Avatar maps an avatar filename to its full-size URL.
func (b URLBuilder) Avatar(filename string) string {
	return b.File(path.Join("avatars/full", filename))
}

// AvatarThumbnail maps an avatar filename to its thumbnail URL.
func (b URLBuilder) AvatarThumbnail(filename string) string {
	return b.File(path.Join("avatars/thumbnails", filename))
}

// AvatarURLs holds the public avatar URLs of a user. Both are nil without an avatar.
type AvatarURLs struct {
	Full      *string `json:"full"`
	Thumbnail *string `json:"thumbnail"`
}

func (b URLBuilder) avatarURLs(u *model.User) AvatarURLs {
	var urls AvatarURLs
	if u.Avatar != nil && *u.Avatar != "" {
		full := b.Avatar(*u.Avatar)
		urls.Full = &full
	}
	if u.AvatarThumbnail != nil && *u.AvatarThumbnail != "" {
		thumb := b.AvatarThumbnail(*u.AvatarThumbnail)
		urls.Thumbnail = &thumb
	}
	return urls
}

// FileRemover deletes derived files by stored filename.
type FileRemover interface {
	DeleteProcessed(filename, category string)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func findUser(ctx context.Context, users repository.UserRepository, id string) (*model.User, error) {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err, "load user")
	}
	return user, nil
}

// enforceBan rejects users with an active ban and clears bans that have lapsed.
func enforceBan(ctx context.Context, users repository.UserRepository, user *model.User, now time.Time) error {
	if !user.Banned {
		return nil
	}
	if user.BanActive(now) {
		reason := ""
		if user.BanReason != nil {
			reason = *user.BanReason
		}
		return apperrors.Banned(reason)
	}

	if err := users.Update(ctx, user.ID, map[string]interface{}{
		"banned":       false,
		"banReason":    nil,
		"banExpiresAt": nil,
	}); err != nil {
		return apperrors.Internal(err, "lift expired ban")
	}
	user.Banned = false
	user.BanReason = nil
	user.BanExpiresAt = nil
	return nil
}
