package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
)

// Account links a user to a sign-in provider. Credential accounts hold the
// password hash.
type Account struct {
	ID                    string     `json:"id" gorm:"column:id;primaryKey"`
	AccountID             string     `json:"accountId" gorm:"column:accountId;not null"`
	ProviderID            string     `json:"providerId" gorm:"column:providerId;not null"`
	UserID                string     `json:"userId" gorm:"column:userId;index;not null"`
	AccessToken           *string    `json:"-" gorm:"column:accessToken"`
	RefreshToken          *string    `json:"-" gorm:"column:refreshToken"`
	IDToken               *string    `json:"-" gorm:"column:idToken"`
	AccessTokenExpiresAt  *time.Time `json:"-" gorm:"column:accessTokenExpiresAt"`
	RefreshTokenExpiresAt *time.Time `json:"-" gorm:"column:refreshTokenExpiresAt"`
	Scope                 *string    `json:"scope" gorm:"column:scope"`
	Password              *string    `json:"-" gorm:"column:password"` // Never expose in JSON
	CreatedAt             time.Time  `json:"createdAt" gorm:"column:createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt" gorm:"column:updatedAt"`
}

func (Account) TableName() string { return "account" }

// BeforeCreate sets a UUID before creating the record.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
