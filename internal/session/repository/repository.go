package repository

import (
	"context"
	"errors"
	"time"

	"school-admin/backend/internal/session/domain"
)

// ErrDuplicateTokenHash is returned by Create when another session already
// holds the same token hash. Callers should re-fetch the existing session and
// continue rather than treat this as fatal.
var ErrDuplicateTokenHash = errors.New("session: duplicate token hash")

// Repository defines persistence for sessions.
//
// Lookup methods return (nil, nil) for missing rows; errors are reserved for
// store failures. The store must enforce uniqueness on the token hash.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByUserAndTokenHash returns the session for (userID, tokenHash), or nil if not found.
	GetByUserAndTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error)
	// ListLiveByUser returns the user's active, unexpired sessions ordered by
	// creation time ascending (oldest first).
	ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// Create persists the session. Assigns an ID when the session has none.
	// Returns ErrDuplicateTokenHash when the token hash is already taken.
	Create(ctx context.Context, s *domain.Session) error
	// UpdateLastActivity sets the session's last-activity timestamp.
	// Returns false when the session no longer exists.
	UpdateLastActivity(ctx context.Context, id string, at time.Time) (bool, error)
	// UpdateExpiry sets the session's expiry deadline.
	// Returns false when the session no longer exists.
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	// DeleteByID removes the session. Deleting an absent session is not an error.
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUser removes all sessions for the user and returns how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	// DeleteExpired removes all sessions store-wide whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// LockUser serializes session creation for one user across processes.
	// The returned unlock must be called exactly once.
	LockUser(ctx context.Context, userID string) (unlock func(), err error)
}
