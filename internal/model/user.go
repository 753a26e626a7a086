package model

import (
	"errors"
	"strings"
	"time"
)

// User is an account that owns items.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Password length bounds in bytes. bcrypt rejects anything past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// NormalizeEmail lowercases and trims an account email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration is the input for creating an account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalizes r and checks every field.
func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)

	verr := &ValidationError{}
	checkText(verr, "name", r.Name, true, MaxNameLength)
	checkEmail(verr, "email", r.Email)
	if err := ValidatePassword(r.Password); err != nil {
		verr.Add("password", err.Error())
	}
	return verr.OrNil()
}
