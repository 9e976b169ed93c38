package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one database handle. Repositories
// obtained from the Store passed to a WithTransaction callback run inside
// that transaction.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Accounts() AccountRepository
	Verifications() VerificationRepository
	Media() MediaRepository
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore builds a Store over db.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Users() UserRepository                 { return NewUserRepository(s.db) }
func (s *store) Sessions() SessionRepository           { return NewSessionRepository(s.db) }
func (s *store) Accounts() AccountRepository           { return NewAccountRepository(s.db) }
func (s *store) Verifications() VerificationRepository { return NewVerificationRepository(s.db) }
func (s *store) Media() MediaRepository                { return NewMediaRepository(s.db) }

// WithTransaction executes a function within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx})
	})
}
