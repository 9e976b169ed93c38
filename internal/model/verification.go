package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Verification stores a short-lived identifier → value pair, such as a
// password reset token.
type Verification struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Identifier string    `gorm:"column:identifier;index;not null"`
	Value      string    `gorm:"column:value;not null"`
	ExpiresAt  time.Time `gorm:"column:expiresAt;not null"`
	CreatedAt  time.Time `gorm:"column:createdAt"`
	UpdatedAt  time.Time `gorm:"column:updatedAt"`
}

func (Verification) TableName() string { return "verification" }

// BeforeCreate sets a UUID before creating the record.
func (v *Verification) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
