package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is the configured admin account.
type Credentials struct {
	Username string
	// PasswordHash is a bcrypt hash; when set, Password is ignored.
	PasswordHash string
	// Password is a plaintext fallback for local development.
	Password string
}

// Verify reports whether username and password match the account. Usernames
// compare case-insensitively.
func (c Credentials) Verify(username, password string) bool {
	if c.Username == "" || password == "" {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(username), c.Username) {
		return false
	}
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	}
	if c.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
}

// HashPassword returns the bcrypt hash of password for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
