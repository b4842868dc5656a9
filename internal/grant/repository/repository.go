// Package repository defines persistence for access grants and the service
// catalog.
package repository

import (
	"context"

	"school-admin/backend/internal/grant/domain"
)

// Repository is the grant store used by the permission resolver. Missing rows
// are returned as nil, not as errors.
type Repository interface {
	// FindActiveGrant returns the user's grant filtered to active = true, or
	// nil when the user has no active grant.
	FindActiveGrant(ctx context.Context, userID string) (*domain.AccessGrant, error)
	// ListActiveServices returns the catalog filtered to active = true.
	ListActiveServices(ctx context.Context) ([]*domain.ServiceDefinition, error)
	// GetActiveService returns one active catalog entry, or nil when the key
	// is absent or disabled.
	GetActiveService(ctx context.Context, serviceKey string) (*domain.ServiceDefinition, error)
	// UpsertGrant inserts or replaces the user's grant row.
	UpsertGrant(ctx context.Context, g *domain.AccessGrant) error
	// UpsertService inserts or replaces one catalog entry.
	UpsertService(ctx context.Context, s *domain.ServiceDefinition) error
}
