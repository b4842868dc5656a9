package repository

import (
	"context"

	"school-admin/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateStatus changes the account status and reports whether a row matched.
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) (bool, error)
}
