package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"school-admin/backend/internal/session/domain"
	"school-admin/backend/internal/session/service"
)

type fakeLifecycle struct {
	mu           sync.Mutex
	sess         *domain.Session
	heartbeats   int
	heartbeatErr error
	terminated   bool
}

func (f *fakeLifecycle) Heartbeat(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heartbeatErr != nil {
		return f.heartbeatErr
	}
	if f.sess == nil {
		return service.ErrSessionNotFound
	}
	f.heartbeats++
	return nil
}

func (f *fakeLifecycle) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return nil, service.ErrSessionNotFound
	}
	s := *f.sess
	return &s, nil
}

func (f *fakeLifecycle) TerminateSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = nil
	f.terminated = true
	return nil
}

func (f *fakeLifecycle) setExpiry(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess.ExpiresAt = at
}

func (f *fakeLifecycle) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func newFakeLifecycle(expiresIn time.Duration) *fakeLifecycle {
	now := time.Now().UTC()
	return &fakeLifecycle{sess: &domain.Session{
		ID: "sess-1", UserID: "user-1",
		CreatedAt: now, ExpiresAt: now.Add(expiresIn), LastActivityAt: now, IsActive: true,
	}}
}

func testConfig() Config {
	return Config{
		HeartbeatInterval:   5 * time.Millisecond,
		ExpiryCheckInterval: 5 * time.Millisecond,
		WarningWindow:       50 * time.Millisecond,
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestMonitor_HeartbeatsRun(t *testing.T) {
	lc := newFakeLifecycle(time.Hour)
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{})
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for lc.heartbeatCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("heartbeats = %d, want >= 3", lc.heartbeatCount())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMonitor_WarningFiresOnceInsideWindow(t *testing.T) {
	lc := newFakeLifecycle(30 * time.Millisecond) // already inside the 50ms window
	warned := make(chan time.Duration, 8)
	cfg := testConfig()
	m := New(lc, nil, "user-1", "sess-1", cfg, Callbacks{
		OnExpiryWarning: func(remaining time.Duration) { warned <- remaining },
	})
	m.Start(context.Background())
	defer m.Stop()

	select {
	case remaining := <-warned:
		if remaining <= 0 || remaining > cfg.WarningWindow {
			t.Errorf("warning remaining = %v, want within (0, %v]", remaining, cfg.WarningWindow)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warning never fired")
	}

	// The latch holds across subsequent ticks.
	select {
	case <-warned:
		t.Error("warning fired more than once")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestMonitor_ResetWarningRearms(t *testing.T) {
	lc := newFakeLifecycle(40 * time.Millisecond)
	warned := make(chan time.Duration, 8)
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{
		OnExpiryWarning: func(remaining time.Duration) { warned <- remaining },
	})
	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-warned:
	case <-time.After(2 * time.Second):
		t.Fatal("first warning never fired")
	}

	// Extend past the window and re-arm, then let the deadline drift back in.
	lc.setExpiry(time.Now().UTC().Add(time.Hour))
	m.ResetWarning()
	lc.setExpiry(time.Now().UTC().Add(40 * time.Millisecond))

	select {
	case <-warned:
	case <-time.After(2 * time.Second):
		t.Fatal("warning did not fire again after ResetWarning")
	}
}

func TestMonitor_ExpiryIsTerminal(t *testing.T) {
	lc := newFakeLifecycle(10 * time.Millisecond)
	expired := make(chan struct{})
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{
		OnExpired: func() { close(expired) },
	})
	m.Start(context.Background())

	waitSignal(t, expired, "expiry")
	waitSignal(t, m.done, "loops to stop")

	lc.mu.Lock()
	terminated := lc.terminated
	lc.mu.Unlock()
	if !terminated {
		t.Error("expired session should be removed from the store")
	}

	before := lc.heartbeatCount()
	time.Sleep(30 * time.Millisecond)
	if got := lc.heartbeatCount(); got != before {
		t.Errorf("heartbeats continued after expiry: %d -> %d", before, got)
	}
}

func TestMonitor_RemoteTerminationDetected(t *testing.T) {
	lc := newFakeLifecycle(time.Hour)
	remote := make(chan struct{})
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{
		OnRemoteTermination: func() { close(remote) },
	})
	m.Start(context.Background())

	// Another login evicts the session out from under the monitor.
	lc.mu.Lock()
	lc.sess = nil
	lc.mu.Unlock()

	waitSignal(t, remote, "remote termination")
	waitSignal(t, m.done, "loops to stop")
}

func TestMonitor_TransientHeartbeatErrorKeepsRunning(t *testing.T) {
	lc := newFakeLifecycle(time.Hour)
	hbErr := errors.New("store unavailable")
	lc.heartbeatErr = hbErr

	errs := make(chan error, 8)
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{
		OnHeartbeatError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, hbErr) {
			t.Errorf("callback error = %v, want %v", err, hbErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat error callback never fired")
	}

	// Loop survives the failure and recovers once the store is back.
	lc.mu.Lock()
	lc.heartbeatErr = nil
	lc.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for lc.heartbeatCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("heartbeats did not resume after transient error cleared")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	lc := newFakeLifecycle(time.Hour)
	m := New(lc, nil, "user-1", "sess-1", testConfig(), Callbacks{})
	m.Start(context.Background())

	m.Stop()
	m.Stop()

	before := lc.heartbeatCount()
	time.Sleep(30 * time.Millisecond)
	if got := lc.heartbeatCount(); got != before {
		t.Errorf("heartbeats continued after Stop: %d -> %d", before, got)
	}
}
