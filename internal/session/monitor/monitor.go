// Package monitor runs the per-session background loops: a heartbeat loop
// that keeps the activity timestamp fresh and detects remote termination, and
// an expiry loop that fires a one-shot warning before the deadline and retires
// the session once it passes.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"school-admin/backend/internal/session/domain"
	"school-admin/backend/internal/session/service"
	"school-admin/backend/internal/telemetry"
)

// Lifecycle is the slice of the session service the monitor needs.
type Lifecycle interface {
	Heartbeat(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	TerminateSession(ctx context.Context, sessionID string) error
}

// Config holds the loop intervals and the warning window.
type Config struct {
	// HeartbeatInterval is how often the activity timestamp is refreshed.
	HeartbeatInterval time.Duration
	// ExpiryCheckInterval is how often the deadline is re-evaluated.
	ExpiryCheckInterval time.Duration
	// WarningWindow is how long before expiry the one-shot warning fires.
	WarningWindow time.Duration
}

// DefaultConfig returns the production defaults: 5m heartbeats, 60s expiry
// checks, a 5m warning window.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:   5 * time.Minute,
		ExpiryCheckInterval: 60 * time.Second,
		WarningWindow:       5 * time.Minute,
	}
}

// Callbacks are the hooks the owner of a session registers with its monitor.
// All fields are optional. Callbacks run on the monitor's goroutines and must
// not block.
type Callbacks struct {
	// OnExpiryWarning fires once per expiry deadline, when the remaining time
	// first drops inside the warning window. ResetWarning re-arms it.
	OnExpiryWarning func(remaining time.Duration)
	// OnExpired fires once, after the session passed its deadline and was
	// removed from the store. The monitor stops afterwards.
	OnExpired func()
	// OnRemoteTermination fires once, when the session row disappeared without
	// this monitor expiring it (another login evicted it, or an administrator
	// revoked it). The monitor stops afterwards.
	OnRemoteTermination func()
	// OnHeartbeatError fires on transient heartbeat failures. The loop keeps
	// running; the next tick retries.
	OnHeartbeatError func(err error)
}

// Monitor watches one session. Create with New, run with Start, halt with
// Stop. A Monitor is single-use: once stopped (by Stop or by a terminal
// transition) it does not restart.
type Monitor struct {
	sessionID string
	userID    string
	lifecycle Lifecycle
	emitter   telemetry.EventEmitter
	cfg       Config
	callbacks Callbacks
	nowF      func() time.Time

	mu     sync.Mutex
	warned bool

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	termOnce sync.Once
}

// New returns a Monitor for the session. emitter may be nil.
func New(lifecycle Lifecycle, emitter telemetry.EventEmitter, userID, sessionID string, cfg Config, cb Callbacks) *Monitor {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ExpiryCheckInterval <= 0 {
		cfg.ExpiryCheckInterval = def.ExpiryCheckInterval
	}
	if cfg.WarningWindow <= 0 {
		cfg.WarningWindow = def.WarningWindow
	}
	return &Monitor{
		sessionID: sessionID,
		userID:    userID,
		lifecycle: lifecycle,
		emitter:   emitter,
		cfg:       cfg,
		callbacks: cb,
		nowF:      func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
}

// Start launches the heartbeat and expiry loops. The loops stop when ctx is
// cancelled, Stop is called, or the session reaches a terminal state.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.heartbeatLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		m.expiryLoop(ctx)
	}()
	go func() {
		wg.Wait()
		close(m.done)
	}()
}

// Stop cancels both loops and waits for them to exit. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
	if m.cancel != nil {
		<-m.done
	}
}

// ResetWarning re-arms the one-shot expiry warning. Call it after extending
// the session so the warning can fire again for the new deadline.
func (m *Monitor) ResetWarning() {
	m.mu.Lock()
	m.warned = false
	m.mu.Unlock()
}

func (m *Monitor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.lifecycle.Heartbeat(ctx, m.sessionID)
			switch {
			case err == nil:
			case errors.Is(err, service.ErrSessionNotFound):
				m.remoteTermination(ctx)
				return
			default:
				if m.callbacks.OnHeartbeatError != nil {
					m.callbacks.OnHeartbeatError(err)
				}
			}
		}
	}
}

func (m *Monitor) expiryLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ExpiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess, err := m.lifecycle.GetSession(ctx, m.sessionID)
			if errors.Is(err, service.ErrSessionNotFound) {
				m.remoteTermination(ctx)
				return
			}
			if err != nil {
				continue
			}

			remaining := sess.Remaining(m.nowF())
			if remaining <= 0 {
				m.expire(ctx)
				return
			}
			if remaining <= m.cfg.WarningWindow {
				m.warn(ctx, remaining)
			}
		}
	}
}

func (m *Monitor) warn(ctx context.Context, remaining time.Duration) {
	m.mu.Lock()
	already := m.warned
	m.warned = true
	m.mu.Unlock()
	if already {
		return
	}

	m.emit(ctx, telemetry.EventSessionExpiryWarning)
	if m.callbacks.OnExpiryWarning != nil {
		m.callbacks.OnExpiryWarning(remaining)
	}
}

func (m *Monitor) expire(ctx context.Context) {
	m.termOnce.Do(func() {
		// Best effort; the store-wide cleanup will catch the row if this fails.
		_ = m.lifecycle.TerminateSession(ctx, m.sessionID)

		m.emit(ctx, telemetry.EventSessionExpired)
		if m.callbacks.OnExpired != nil {
			m.callbacks.OnExpired()
		}
	})
	m.halt()
}

func (m *Monitor) remoteTermination(ctx context.Context) {
	m.termOnce.Do(func() {
		m.emit(ctx, telemetry.EventSessionRemotelyTerminated)
		if m.callbacks.OnRemoteTermination != nil {
			m.callbacks.OnRemoteTermination()
		}
	})
	m.halt()
}

// halt cancels the sibling loop after a terminal transition. The caller's own
// loop returns right after, so Stop's wait still completes.
func (m *Monitor) halt() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
}

func (m *Monitor) emit(ctx context.Context, eventType string) {
	if m.emitter == nil {
		return
	}
	telemetry.EmitAsync(m.emitter, ctx, &telemetry.Event{
		UserID:    m.userID,
		SessionID: m.sessionID,
		EventType: eventType,
		Source:    "session_monitor",
		CreatedAt: m.nowF(),
	})
}
