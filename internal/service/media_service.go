package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/media"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
	"authmedia/internal/repository"
	"authmedia/internal/upload"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// MediaProcessor stores generic uploads.
type MediaProcessor interface {
	FileRemover
	ProcessMedia(ctx context.Context, src, userID string, opts media.MediaOptions) (*media.MediaResult, error)
	StoreFile(src, originalName, userID string) (*media.MediaResult, error)
}

// MediaFile is the public view of a media row.
type MediaFile struct {
	ID           uint      `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Category     string    `json:"category"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	UploadedBy   *string   `json:"uploadedBy"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
}

// UploadError reports a file that could not be stored.
type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// UploadResult lists stored files and per-file failures of one request.
type UploadResult struct {
	Uploaded []MediaFile   `json:"uploaded"`
	Errors   []UploadError `json:"errors,omitempty"`
}

// MediaQuery pages the media listing.
type MediaQuery struct {
	Category string
	Limit    int
	Offset   int
}

// Pagination echoes the effective paging of a listing.
type Pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// MediaList is one page of media plus table wide stats.
type MediaList struct {
	Files      []MediaFile      `json:"files"`
	Pagination Pagination       `json:"pagination"`
	Stats      model.MediaStats `json:"stats"`
}

// MediaService handles the media library.
type MediaService interface {
	Upload(ctx context.Context, userID string, files upload.Files) *UploadResult
	List(ctx context.Context, q MediaQuery) (*MediaList, error)
	Delete(ctx context.Context, id uint) error
}

type mediaService struct {
	store     repository.Store
	processor MediaProcessor
	urls      URLBuilder
	opts      media.MediaOptions
	logger    logging.Logger
}

// NewMediaService builds a MediaService using the default media options.
func NewMediaService(store repository.Store, processor MediaProcessor, urls URLBuilder, logger logging.Logger) MediaService {
	return &mediaService{
		store:     store,
		processor: processor,
		urls:      urls,
		opts:      media.DefaultMediaOptions(),
		logger:    logger,
	}
}

// Upload stores every file independently. A failing file does not abort the
// others.
func (s *mediaService) Upload(ctx context.Context, userID string, files upload.Files) *UploadResult {
	res := &UploadResult{Uploaded: []MediaFile{}}
	for _, f := range files {
		stored, err := s.storeFile(ctx, userID, f)
		metrics.Uploads.WithLabelValues(model.CategoryMedia, metrics.Result(err)).Inc()
		if err != nil {
			s.logger.Warn(ctx, "media upload failed", "user_id", userID, "file", f.OriginalName, "error", err)
			res.Errors = append(res.Errors, UploadError{File: f.OriginalName, Error: uploadErrorMessage(err)})
			continue
		}
		res.Uploaded = append(res.Uploaded, *stored)
	}
	return res
}

func (s *mediaService) storeFile(ctx context.Context, userID string, f upload.TempFile) (*MediaFile, error) {
	var (
		out *media.MediaResult
		err error
	)
	switch {
	case media.IsValidImage(f.Path):
		out, err = s.processor.ProcessMedia(ctx, f.Path, userID, s.opts)
	case strings.HasPrefix(f.DeclaredMIME, "image/"):
		err = apperrors.ErrInvalidImage
	default:
		out, err = s.processor.StoreFile(f.Path, f.OriginalName, userID)
	}
	if err != nil {
		return nil, err
	}

	row := &model.Media{
		Filename:     out.Filename,
		OriginalName: f.OriginalName,
		MimeType:     out.MimeType,
		Size:         out.Size,
		Path:         filepath.ToSlash(out.Path),
		UploadedBy:   &userID,
		Category:     model.CategoryMedia,
	}
	if out.ThumbnailPath != nil {
		thumb := filepath.ToSlash(*out.ThumbnailPath)
		row.ThumbnailPath = &thumb
	}
	if err := s.store.Media().Create(ctx, row); err != nil {
		s.processor.DeleteProcessed(out.Filename, model.CategoryMedia)
		return nil, apperrors.Internal(err, "save media")
	}

	view := s.view(row)
	view.Width, view.Height = out.OriginalWidth, out.OriginalHeight
	return &view, nil
}

func uploadErrorMessage(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		return appErr.Message
	}
	return "failed to process file"
}

func (s *mediaService) List(ctx context.Context, q MediaQuery) (*MediaList, error) {
	if q.Category != "" && q.Category != model.CategoryAvatar && q.Category != model.CategoryMedia {
		return nil, apperrors.Validation("category must be avatar or media")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	rows, total, err := s.store.Media().List(ctx, repository.MediaFilter{
		Category: q.Category,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, apperrors.Internal(err, "list media")
	}
	stats, err := s.store.Media().Stats(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "media stats")
	}

	files := make([]MediaFile, 0, len(rows))
	for i := range rows {
		files = append(files, s.view(&rows[i]))
	}
	return &MediaList{
		Files: files,
		Pagination: Pagination{
			Limit:   q.Limit,
			Offset:  q.Offset,
			Total:   total,
			HasMore: int64(q.Offset+len(rows)) < total,
		},
		Stats: *stats,
	}, nil
}

// Delete removes a media file and its row. Avatars are owned by the avatar
// endpoints and refused here.
func (s *mediaService) Delete(ctx context.Context, id uint) error {
	row, err := s.store.Media().FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return apperrors.ErrMediaNotFound
		}
		return apperrors.Internal(err, "load media")
	}
	if row.Category == model.CategoryAvatar {
		return apperrors.ErrAvatarMedia
	}

	s.processor.DeleteProcessed(row.Filename, row.Category)
	if err := s.store.Media().Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return apperrors.ErrMediaNotFound
		}
		return apperrors.Internal(err, "delete media")
	}
	s.logger.Info(ctx, "media deleted", "media_id", id, "filename", row.Filename)
	return nil
}

func (s *mediaService) view(row *model.Media) MediaFile {
	f := MediaFile{
		ID:           row.ID,
		Filename:     row.Filename,
		OriginalName: row.OriginalName,
		MimeType:     row.MimeType,
		Size:         row.Size,
		Category:     row.Category,
		URL:          s.urls.File(row.Path),
		UploadedBy:   row.UploadedBy,
		UploadedAt:   row.UploadedAt,
	}
	if row.ThumbnailPath != nil && *row.ThumbnailPath != "" {
		thumb := s.urls.File(*row.ThumbnailPath)
		f.ThumbnailURL = &thumb
	}
	return f
}
