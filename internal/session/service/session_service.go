// Package service implements the session lifecycle: creation under a per-user
// device cap with oldest-first eviction, heartbeats, expiry, extension, and
// termination.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"school-admin/backend/internal/audit"
	"school-admin/backend/internal/security"
	"school-admin/backend/internal/session/domain"
	"school-admin/backend/internal/session/repository"
	"school-admin/backend/internal/telemetry"
)

// Sentinel errors for the session service.
var (
	// ErrDuplicateToken means the token-hash lookup raced with a concurrent
	// insert for the same token. Retryable: re-invoke InitializeSession, which
	// will find the existing session.
	ErrDuplicateToken = errors.New("session: duplicate token")
	// ErrSessionNotFound means the session row is gone from the store. On a
	// heartbeat this signals remote termination, not a transient failure.
	ErrSessionNotFound = errors.New("session: not found")
)

// Config holds the tunables of the session service.
type Config struct {
	// MaxDevices is the per-user cap on concurrently active sessions.
	MaxDevices int
	// SessionDuration is the lifetime from creation (or extension) to expiry.
	SessionDuration time.Duration
}

// DefaultConfig returns the production defaults: 2 devices, 24h sessions.
func DefaultConfig() Config {
	return Config{MaxDevices: 2, SessionDuration: 24 * time.Hour}
}

// InitializeResult holds the outcome of InitializeSession.
type InitializeResult struct {
	Session *domain.Session
	// Reused is true when an existing session matched (userID, tokenHash) and
	// was returned unchanged (idempotent re-entry).
	Reused bool
	// Evicted lists the devices whose sessions were removed to honor the cap.
	// Eviction is a normal outcome, not an error; callers should surface it to
	// the user.
	Evicted []domain.DeviceInfo
}

// SessionService manages session records in the session store.
type SessionService struct {
	repo     repository.Repository
	auditLog audit.AuditLogger
	emitter  telemetry.EventEmitter
	metrics  *telemetry.Metrics
	cfg      Config
	nowF     func() time.Time
}

// NewSessionService returns a SessionService with the given dependencies.
// auditLog, emitter, and metrics may be nil; the service then skips those signals.
func NewSessionService(
	repo repository.Repository,
	auditLog audit.AuditLogger,
	emitter telemetry.EventEmitter,
	metrics *telemetry.Metrics,
	cfg Config,
) *SessionService {
	if cfg.MaxDevices <= 0 {
		cfg.MaxDevices = DefaultConfig().MaxDevices
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &SessionService{
		repo:     repo,
		auditLog: auditLog,
		emitter:  emitter,
		metrics:  metrics,
		cfg:      cfg,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// InitializeSession registers a session for an already-issued token.
//
// The sequence is: digest the token; return the existing session unchanged if
// (userID, tokenHash) is already registered; purge expired sessions store-wide;
// evict the oldest live session(s) while the user is at the device cap; insert
// the new session. The whole sequence is serialized per user via the store lock.
//
// Returns ErrDuplicateToken when the insert loses a race on the token-hash
// uniqueness; the caller should retry, which lands on the idempotent path.
// Store errors are fatal: the caller cannot proceed without a session.
func (s *SessionService) InitializeSession(ctx context.Context, userID, token, userAgent string) (*InitializeResult, error) {
	tokenHash := security.HashSessionToken(token)

	unlock, err := s.repo.LockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.GetByUserAndTokenHash(ctx, userID, tokenHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &InitializeResult{Session: existing, Reused: true}, nil
	}

	now := s.nowF()

	// Store-wide housekeeping, not scoped to this user.
	if _, err := s.repo.DeleteExpired(ctx, now); err != nil {
		return nil, err
	}

	live, err := s.repo.ListLiveByUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var evicted []domain.DeviceInfo
	for len(live) >= s.cfg.MaxDevices {
		oldest := live[0]
		if err := s.repo.DeleteByID(ctx, oldest.ID); err != nil {
			return nil, err
		}
		evicted = append(evicted, oldest.Device)
		live = live[1:]

		s.audit(ctx, userID, audit.ActionSessionEvicted, map[string]any{
			"session_id": oldest.ID,
			"device":     oldest.Device.Label(),
		})
		s.emit(ctx, userID, oldest.ID, telemetry.EventSessionEvicted, map[string]any{
			"device": oldest.Device.Label(),
		})
		s.metrics.SessionEvicted(ctx)
	}

	sess := &domain.Session{
		UserID:         userID,
		TokenHash:      tokenHash,
		Device:         domain.CaptureDevice(userAgent, now),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.SessionDuration),
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrDuplicateTokenHash) {
			return nil, ErrDuplicateToken
		}
		return nil, err
	}

	s.audit(ctx, userID, audit.ActionSessionCreated, map[string]any{
		"session_id": sess.ID,
		"device":     sess.Device.Label(),
	})
	s.emit(ctx, userID, sess.ID, telemetry.EventSessionCreated, nil)
	s.metrics.SessionCreated(ctx)

	return &InitializeResult{Session: sess, Evicted: evicted}, nil
}

// Heartbeat updates the session's last-activity timestamp. It never touches
// the expiry deadline.
//
// Returns ErrSessionNotFound when the row is gone (deleted by another login or
// an administrator) so the caller can distinguish remote termination from a
// transient store failure, which is returned as-is.
func (s *SessionService) Heartbeat(ctx context.Context, sessionID string) error {
	ok, err := s.repo.UpdateLastActivity(ctx, sessionID, s.nowF())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.Heartbeat(ctx)
	return nil
}

// GetSession returns the session row, or ErrSessionNotFound when it is gone.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// VerifySessionExists reports whether the session row is still present.
// Used after a failed heartbeat to disambiguate a network failure from remote
// termination.
func (s *SessionService) VerifySessionExists(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// ExtendSession unconditionally resets the session's expiry to now plus the
// configured duration. The device cap is not re-checked. Returns the new
// deadline, or ErrSessionNotFound when the session is gone.
func (s *SessionService) ExtendSession(ctx context.Context, sessionID string) (time.Time, error) {
	newExpiry := s.nowF().Add(s.cfg.SessionDuration)
	ok, err := s.repo.UpdateExpiry(ctx, sessionID, newExpiry)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrSessionNotFound
	}

	s.audit(ctx, "", audit.ActionSessionExtended, map[string]any{
		"session_id": sessionID,
		"expires_at": newExpiry.Format(time.RFC3339),
	})
	s.emit(ctx, "", sessionID, telemetry.EventSessionExtended, map[string]any{
		"expires_at": newExpiry.Format(time.RFC3339),
	})
	s.metrics.SessionExtended(ctx)

	return newExpiry, nil
}

// TerminateSession deletes the session. Idempotent: terminating an absent
// session is not an error.
func (s *SessionService) TerminateSession(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteByID(ctx, sessionID); err != nil {
		return err
	}
	s.audit(ctx, "", audit.ActionSessionTerminated, map[string]any{"session_id": sessionID})
	return nil
}

// TerminateAllSessions deletes every session for the user and returns how many
// were removed. Idempotent.
func (s *SessionService) TerminateAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.audit(ctx, userID, audit.ActionSessionTerminated, map[string]any{"count": n})
	}
	return n, nil
}

// CleanupExpired deletes all sessions store-wide whose expiry has passed.
// Safe to call opportunistically; the device cap does not depend on it because
// cap checks already filter on expiry.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.nowF())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.SessionsExpired(ctx, n)
	}
	return n, nil
}

func (s *SessionService) audit(ctx context.Context, userID, action string, meta map[string]any) {
	if s.auditLog == nil {
		return
	}
	metaJSON := ""
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			metaJSON = string(b)
		}
	}
	s.auditLog.LogEvent(ctx, userID, action, audit.ResourceSession, metaJSON)
}

func (s *SessionService) emit(ctx context.Context, userID, sessionID, eventType string, meta map[string]any) {
	if s.emitter == nil {
		return
	}
	var metaJSON []byte
	if meta != nil {
		metaJSON, _ = json.Marshal(meta)
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    "session_service",
		Metadata:  metaJSON,
		CreatedAt: s.nowF(),
	})
}
