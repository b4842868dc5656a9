// Package audit records security-relevant actions (session lifecycle, denied
// permission checks) as immutable audit rows.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"school-admin/backend/internal/audit/domain"
	auditrepo "school-admin/backend/internal/audit/repository"
)

// Session lifecycle and permission actions recorded by this subsystem.
const (
	ActionSessionCreated    = "session_created"
	ActionSessionEvicted    = "session_evicted"
	ActionSessionExtended   = "session_extended"
	ActionSessionTerminated = "session_terminated"
	ActionSessionExpired    = "session_expired"
	ActionPermissionDenied  = "permission_denied"

	ResourceSession = "session"
	ResourceService = "service"
)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
