// Package telemetry defines the session-lifecycle event stream emitted by this
// subsystem and consumed by the client orchestrator and observability backends.
package telemetry

import (
	"context"
	"time"
)

// Event types emitted by the session and permission subsystems.
const (
	EventSessionCreated            = "session_created"
	EventSessionEvicted            = "session_evicted"
	EventSessionExpiryWarning      = "session_expiry_warning"
	EventSessionExpired            = "session_expired"
	EventSessionExtended           = "session_extended"
	EventSessionRemotelyTerminated = "session_remotely_terminated"
	EventPermissionDenied          = "permission_denied"
)

// Event represents one telemetry event (user/session scoped).
type Event struct {
	UserID    string
	SessionID string
	EventType string
	Source    string
	Metadata  []byte // JSON
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
