package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MaxPasswordLen = 72 // bcrypt ignores everything past 72 bytes
)

var (
	ErrPasswordEmpty = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would silently truncate
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

var (
	dummyOnce sync.Once
	dummyHash []byte
)

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost hashes with an explicit bcrypt cost
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// PasswordMatches reports whether password matches the stored hash
func PasswordMatches(hashedPassword, password string) bool {
	return ComparePassword(hashedPassword, password) == nil
}

// CompareDummy burns the same bcrypt work as a real comparison. Used when the account
// does not exist so both paths cost roughly the same.
func CompareDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("teacup-dummy-password"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
