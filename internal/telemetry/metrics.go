package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the session-lifecycle and permission counters registered on a meter.
// A nil *Metrics is safe to use; every method no-ops.
type Metrics struct {
	sessionsCreated  metric.Int64Counter
	sessionsEvicted  metric.Int64Counter
	sessionsExpired  metric.Int64Counter
	sessionsExtended metric.Int64Counter
	heartbeats       metric.Int64Counter
	permissionChecks metric.Int64Counter
}

// NewMetrics registers the subsystem's counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.sessionsCreated, err = meter.Int64Counter("sessions.created",
		metric.WithDescription("Sessions created")); err != nil {
		return nil, err
	}
	if m.sessionsEvicted, err = meter.Int64Counter("sessions.evicted",
		metric.WithDescription("Sessions evicted to honor the device cap")); err != nil {
		return nil, err
	}
	if m.sessionsExpired, err = meter.Int64Counter("sessions.expired",
		metric.WithDescription("Sessions removed after expiry")); err != nil {
		return nil, err
	}
	if m.sessionsExtended, err = meter.Int64Counter("sessions.extended",
		metric.WithDescription("Sessions explicitly extended")); err != nil {
		return nil, err
	}
	if m.heartbeats, err = meter.Int64Counter("sessions.heartbeats",
		metric.WithDescription("Heartbeat ticks recorded")); err != nil {
		return nil, err
	}
	if m.permissionChecks, err = meter.Int64Counter("permissions.checks",
		metric.WithDescription("Permission resolutions, labeled by outcome")); err != nil {
		return nil, err
	}
	return m, nil
}

// SessionCreated increments the created-sessions counter.
func (m *Metrics) SessionCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsCreated.Add(ctx, 1)
}

// SessionEvicted increments the evicted-sessions counter.
func (m *Metrics) SessionEvicted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsEvicted.Add(ctx, 1)
}

// SessionsExpired adds n to the expired-sessions counter.
func (m *Metrics) SessionsExpired(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.sessionsExpired.Add(ctx, n)
}

// SessionExtended increments the extended-sessions counter.
func (m *Metrics) SessionExtended(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsExtended.Add(ctx, 1)
}

// Heartbeat increments the heartbeat counter.
func (m *Metrics) Heartbeat(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeats.Add(ctx, 1)
}

// PermissionCheck records one permission resolution with its outcome ("granted" or "denied").
func (m *Metrics) PermissionCheck(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.permissionChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
