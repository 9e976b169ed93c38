package service

import (
	"context"
	"path/filepath"
	"time"

	"authmedia/internal/cache"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/media"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
	"authmedia/internal/repository"
	"authmedia/internal/upload"
)

const avatarCacheTTL = 24 * time.Hour

// AvatarProcessor writes and removes avatar derivatives.
type AvatarProcessor interface {
	FileRemover
	ProcessAvatar(ctx context.Context, src, userID string) (*media.AvatarResult, error)
}

// AvatarUpload describes a freshly stored avatar.
type AvatarUpload struct {
	Avatar          string `json:"avatar"`
	AvatarThumbnail string `json:"avatarThumbnail"`
	Filename        string `json:"filename"`
}

// AvatarService manages the single avatar of each user.
type AvatarService interface {
	Upload(ctx context.Context, userID string, file upload.TempFile) (*AvatarUpload, error)
	Delete(ctx context.Context, userID string) error
	URLs(ctx context.Context, userID string) (*AvatarURLs, error)
}

type avatarService struct {
	store     repository.Store
	processor AvatarProcessor
	cache     *cache.Client
	urls      URLBuilder
	logger    logging.Logger
}

// NewAvatarService builds an AvatarService. cache may be nil.
func NewAvatarService(store repository.Store, processor AvatarProcessor, cache *cache.Client, urls URLBuilder, logger logging.Logger) AvatarService {
	return &avatarService{store: store, processor: processor, cache: cache, urls: urls, logger: logger}
}

func avatarCacheKey(userID string) string {
	return "avatar-urls:" + userID
}

// Upload replaces the user's avatar. The previous files are removed only
// after the new state is committed.
func (s *avatarService) Upload(ctx context.Context, userID string, file upload.TempFile) (*AvatarUpload, error) {
	res, err := s.upload(ctx, userID, file)
	metrics.Uploads.WithLabelValues(model.CategoryAvatar, metrics.Result(err)).Inc()
	return res, err
}

func (s *avatarService) upload(ctx context.Context, userID string, file upload.TempFile) (*AvatarUpload, error) {
	user, err := findUser(ctx, s.store.Users(), userID)
	if err != nil {
		return nil, err
	}

	processed, err := s.processor.ProcessAvatar(ctx, file.Path, userID)
	if err != nil {
		return nil, err
	}

	previous := map[string]struct{}{}
	if user.Avatar != nil && *user.Avatar != "" {
		previous[*user.Avatar] = struct{}{}
	}
	if user.AvatarThumbnail != nil && *user.AvatarThumbnail != "" {
		previous[*user.AvatarThumbnail] = struct{}{}
	}

	thumbPath := filepath.ToSlash(processed.ThumbnailPath)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		rows, err := tx.Media().ListByUploader(ctx, userID, model.CategoryAvatar)
		if err != nil {
			return err
		}
		for _, row := range rows {
			previous[row.Filename] = struct{}{}
		}

		if err := tx.Users().Update(ctx, userID, map[string]interface{}{
			"avatar":          processed.Filename,
			"avatarThumbnail": processed.Filename,
		}); err != nil {
			return err
		}
		if _, err := tx.Media().DeleteByUploader(ctx, userID, model.CategoryAvatar); err != nil {
			return err
		}
		return tx.Media().Create(ctx, &model.Media{
			Filename:      processed.Filename,
			OriginalName:  file.OriginalName,
			MimeType:      media.OutputMIME,
			Size:          processed.Size,
			Path:          filepath.ToSlash(processed.FullPath),
			ThumbnailPath: &thumbPath,
			UploadedBy:    &userID,
			Category:      model.CategoryAvatar,
		})
	})
	if err != nil {
		s.processor.DeleteProcessed(processed.Filename, model.CategoryAvatar)
		return nil, apperrors.Internal(err, "save avatar")
	}

	for name := range previous {
		if name != processed.Filename {
			s.processor.DeleteProcessed(name, model.CategoryAvatar)
		}
	}
	_ = s.cache.Delete(ctx, avatarCacheKey(userID))
	s.logger.Info(ctx, "avatar uploaded", "user_id", userID, "filename", processed.Filename, "size", processed.Size)

	return &AvatarUpload{
		Avatar:          s.urls.Avatar(processed.Filename),
		AvatarThumbnail: s.urls.AvatarThumbnail(processed.Filename),
		Filename:        processed.Filename,
	}, nil
}

// Delete clears the avatar fields and media row, then removes the files.
func (s *avatarService) Delete(ctx context.Context, userID string) error {
	user, err := findUser(ctx, s.store.Users(), userID)
	if err != nil {
		return err
	}
	if user.Avatar == nil || *user.Avatar == "" {
		return apperrors.ErrNoAvatar
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().Update(ctx, userID, map[string]interface{}{
			"avatar":          nil,
			"avatarThumbnail": nil,
		}); err != nil {
			return err
		}
		_, err := tx.Media().DeleteByUploader(ctx, userID, model.CategoryAvatar)
		return err
	})
	if err != nil {
		return apperrors.Internal(err, "delete avatar")
	}

	s.processor.DeleteProcessed(*user.Avatar, model.CategoryAvatar)
	if user.AvatarThumbnail != nil && *user.AvatarThumbnail != *user.Avatar {
		s.processor.DeleteProcessed(*user.AvatarThumbnail, model.CategoryAvatar)
	}
	_ = s.cache.Delete(ctx, avatarCacheKey(userID))
	s.logger.Info(ctx, "avatar deleted", "user_id", userID)
	return nil
}

// URLs returns the public avatar URLs of any user, served from cache when
// available.
func (s *avatarService) URLs(ctx context.Context, userID string) (*AvatarURLs, error) {
	var cached AvatarURLs
	if s.cache.GetJSON(ctx, avatarCacheKey(userID), &cached) {
		return &cached, nil
	}

	user, err := findUser(ctx, s.store.Users(), userID)
	if err != nil {
		return nil, err
	}
	urls := s.urls.avatarURLs(user)

	if err := s.cache.SetJSON(ctx, avatarCacheKey(userID), urls, avatarCacheTTL); err != nil {
		s.logger.Warn(ctx, "cache avatar urls", "user_id", userID, "error", err)
	}
	return &urls, nil
}
