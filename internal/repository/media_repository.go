package repository

import (
	"context"

	"gorm.io/gorm"

	"authmedia/internal/model"
)

// MediaFilter pages through the media table. An empty Category lists all.
type MediaFilter struct {
	Category string
	Limit    int
	Offset   int
}

// MediaRepository defines media row persistence operations.
type MediaRepository interface {
	Create(ctx context.Context, media *model.Media) error
	FindByID(ctx context.Context, id uint) (*model.Media, error)
	Delete(ctx context.Context, id uint) error
	DeleteByUploader(ctx context.Context, userID, category string) (int64, error)
	ListByUploader(ctx context.Context, userID, category string) ([]model.Media, error)
	List(ctx context.Context, filter MediaFilter) ([]model.Media, int64, error)
	Stats(ctx context.Context) (*model.MediaStats, error)
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new media repository.
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, media *model.Media) error {
	return r.db.WithContext(ctx).Create(media).Error
}

func (r *mediaRepository) FindByID(ctx context.Context, id uint) (*model.Media, error) {
	var media model.Media
	if err := r.db.WithContext(ctx).First(&media, id).Error; err != nil {
		return nil, err
	}
	return &media, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Media{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *mediaRepository) DeleteByUploader(ctx context.Context, userID, category string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("uploadedBy = ? AND category = ?", userID, category).
		Delete(&model.Media{})
	return res.RowsAffected, res.Error
}

func (r *mediaRepository) ListByUploader(ctx context.Context, userID, category string) ([]model.Media, error) {
	var rows []model.Media
	if err := r.db.WithContext(ctx).
		Where("uploadedBy = ? AND category = ?", userID, category).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns one page newest first along with the filtered total.
func (r *mediaRepository) List(ctx context.Context, filter MediaFilter) ([]model.Media, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Media{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.Media
	if err := q.Order("uploadedAt DESC").Order("id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats aggregates the whole table regardless of any list filter.
func (r *mediaRepository) Stats(ctx context.Context) (*model.MediaStats, error) {
	var stats model.MediaStats
	err := r.db.WithContext(ctx).Model(&model.Media{}).
		Select(`COUNT(*) AS totalFiles,
			COALESCE(SUM(CASE WHEN category = 'avatar' THEN 1 ELSE 0 END), 0) AS avatarCount,
			COALESCE(SUM(CASE WHEN category = 'media' THEN 1 ELSE 0 END), 0) AS mediaCount,
			COALESCE(SUM(size), 0) AS totalSize`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
