package model

import "time"

const (
	CategoryAvatar = "avatar"
	CategoryMedia  = "media"
)

// Media tracks a processed upload on disk.
type Media struct {
	ID            uint      `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Filename      string    `json:"filename" gorm:"column:filename;not null"`
	OriginalName  string    `json:"originalName" gorm:"column:originalName;not null"`
	MimeType      string    `json:"mimeType" gorm:"column:mimeType;not null"`
	Size          int64     `json:"size" gorm:"column:size;not null"`
	Path          string    `json:"path" gorm:"column:path;not null"`
	ThumbnailPath *string   `json:"thumbnailPath" gorm:"column:thumbnailPath"`
	UploadedBy    *string   `json:"uploadedBy" gorm:"column:uploadedBy;index"`
	UploadedAt    time.Time `json:"uploadedAt" gorm:"column:uploadedAt;autoCreateTime"`
	Category      string    `json:"category" gorm:"column:category;index;not null"`
}

func (Media) TableName() string { return "media" }

// MediaStats aggregates the media table.
type MediaStats struct {
	TotalFiles  int64 `json:"totalFiles" gorm:"column:totalFiles"`
	AvatarCount int64 `json:"avatarCount" gorm:"column:avatarCount"`
	MediaCount  int64 `json:"mediaCount" gorm:"column:mediaCount"`
	TotalSize   int64 `json:"totalSize" gorm:"column:totalSize"`
}
