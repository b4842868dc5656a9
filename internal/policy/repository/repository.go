package repository

import (
	"context"

	"school-admin/backend/internal/policy/domain"
)

// Repository defines persistence for access policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AccessPolicy, error)
	// ListEnabled returns the enabled policies, oldest first.
	ListEnabled(ctx context.Context) ([]*domain.AccessPolicy, error)
	Create(ctx context.Context, p *domain.AccessPolicy) error
	Update(ctx context.Context, p *domain.AccessPolicy) error
}
