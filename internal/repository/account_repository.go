package repository

import (
	"context"

	"gorm.io/gorm"

	"authmedia/internal/model"
)

// AccountRepository defines provider account persistence operations.
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	Update(ctx context.Context, account *model.Account) error
	FindByUserAndProvider(ctx context.Context, userID, providerID string) (*model.Account, error)
	FindByProviderAccount(ctx context.Context, providerID, accountID string) (*model.Account, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account.
func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// Update updates an existing account.
func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// FindByUserAndProvider finds the account a user holds with a provider.
func (r *accountRepository) FindByUserAndProvider(ctx context.Context, userID, providerID string) (*model.Account, error) {
	var account model.Account
	if err := r.db.WithContext(ctx).
		Where("userId = ? AND providerId = ?", userID, providerID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByProviderAccount finds an account by the provider's own subject id.
func (r *accountRepository) FindByProviderAccount(ctx context.Context, providerID, accountID string) (*model.Account, error) {
	var account model.Account
	if err := r.db.WithContext(ctx).
		Where("providerId = ? AND accountId = ?", providerID, accountID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdatePassword replaces the hash on the user's credential account.
func (r *accountRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("userId = ? AND providerId = ?", userID, model.ProviderCredential).
		Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
