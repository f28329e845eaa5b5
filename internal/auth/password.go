package auth

import (
	"fmt"

	"github.com/fusionmc/server/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooShort is returned when hashing a password under MinPasswordLength.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)

// MinPasswordLength is the shortest operator password accepted for hashing.
const MinPasswordLength = 8

// PasswordService checks operator passwords against the configured bcrypt hash
type PasswordService struct {
	bcryptCost   int
	operatorHash []byte
}

// NewPasswordService creates a new password service with configuration
func NewPasswordService(cfg *config.Config) *PasswordService {
	cost := cfg.Auth.BCryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordService{
		bcryptCost:   cost,
		operatorHash: []byte(cfg.Auth.OperatorPasswordHash),
	}
}

// HashPassword hashes a password using bcrypt. Operators use it to produce
// OPERATOR_PASSWORD_HASH.
func (s *PasswordService) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword verifies a password against a hash
func (s *PasswordService) VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyOperator checks a password against the configured operator hash.
func (s *PasswordService) VerifyOperator(password string) bool {
	if len(s.operatorHash) == 0 {
		return false
	}
	return s.VerifyPassword(password, string(s.operatorHash))
}
