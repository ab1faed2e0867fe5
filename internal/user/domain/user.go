package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account resolved from an upstream identity.
type User struct {
	ID          string
	ExternalID  string // subject from the identity provider; unique
	Email       string
	Name        string
	PictureURL  string
	Status      UserStatus
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.ExternalID) == "" {
		return errors.New("external id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is invalid")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
