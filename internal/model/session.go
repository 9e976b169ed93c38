package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is an opaque bearer token bound to a user until ExpiresAt.
type Session struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	Token     string    `json:"-" gorm:"column:token;uniqueIndex;not null"`
	UserID    string    `json:"userId" gorm:"column:userId;index;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"column:expiresAt;not null"`
	IPAddress *string   `json:"ipAddress" gorm:"column:ipAddress"`
	UserAgent *string   `json:"userAgent" gorm:"column:userAgent"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:createdAt"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updatedAt"`
}

func (Session) TableName() string { return "session" }

// BeforeCreate sets a UUID before creating the record.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionWithUser is a session row joined with its owner, used by the admin listing.
type SessionWithUser struct {
	Session
	UserEmail string `gorm:"column:userEmail"`
	UserName  string `gorm:"column:userName"`
	UserRole  string `gorm:"column:userRole"`
}
