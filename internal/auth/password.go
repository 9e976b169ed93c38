package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "authmedia/internal/errors"
)

const (
	bcryptCost = 10

	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// ValidatePassword enforces the length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return apperrors.ErrPasswordTooLong
	}
	return nil
}

// HashPassword validates and hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
