package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an authenticated user in the system.
type User struct {
	ID              string     `json:"id" gorm:"column:id;primaryKey"`
	Name            string     `json:"name" gorm:"column:name;not null"`
	Email           string     `json:"email" gorm:"column:email;uniqueIndex;not null"`
	EmailVerified   bool       `json:"emailVerified" gorm:"column:emailVerified;not null;default:false"`
	Image           *string    `json:"image" gorm:"column:image"`
	Role            string     `json:"role" gorm:"column:role;default:user"`
	Banned          bool       `json:"banned" gorm:"column:banned;default:false"`
	BanReason       *string    `json:"banReason" gorm:"column:banReason"`
	BanExpiresAt    *time.Time `json:"banExpiresAt" gorm:"column:banExpiresAt"`
	Avatar          *string    `json:"avatar" gorm:"column:avatar"`
	AvatarThumbnail *string    `json:"avatarThumbnail" gorm:"column:avatarThumbnail"`
	CreatedAt       time.Time  `json:"createdAt" gorm:"column:createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" gorm:"column:updatedAt"`
}

func (User) TableName() string { return "user" }

// BeforeCreate sets a UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BanActive reports whether the ban still applies at now. A ban without an
// expiry never lapses.
func (u *User) BanActive(now time.Time) bool {
	if !u.Banned {
		return false
	}
	return u.BanExpiresAt == nil || u.BanExpiresAt.After(now)
}

// HasAvatar reports whether both avatar files are recorded.
func (u *User) HasAvatar() bool {
	return u.Avatar != nil && *u.Avatar != "" && u.AvatarThumbnail != nil && *u.AvatarThumbnail != ""
}
