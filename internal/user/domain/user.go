// Package domain defines the user account entity.
package domain

import (
	"errors"
	"time"
)

// User is the account record backing sessions and grants. Identity and
// credentials live in the hosted auth provider; this row carries the fields
// the session and permission subsystems need.
type User struct {
	ID        string
	FullName  string
	RoleName  string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusArchived  UserStatus = "archived"
)

// IsActive reports whether the account may hold sessions and resolve
// permissions.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.FullName == "" {
		return errors.New("full name is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
