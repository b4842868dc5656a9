// Package service implements permission resolution: combining a user's stored
// grant with the service catalog and the hierarchy order into per-service
// access decisions.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"school-admin/backend/internal/audit"
	grantdomain "school-admin/backend/internal/grant/domain"
	grantrepo "school-admin/backend/internal/grant/repository"
	"school-admin/backend/internal/policy/engine"
	"school-admin/backend/internal/telemetry"
	userrepo "school-admin/backend/internal/user/repository"
)

// ErrInactiveAccount means the account exists but is not in an active state,
// or does not exist at all. Distinct from "no grant", which is a normal
// empty resolution.
var ErrInactiveAccount = errors.New("permission: inactive account")

// ResolvedPermission is the per-service verdict plus the catalog fields the
// UI needs to explain it.
type ResolvedPermission struct {
	ServiceKey          string
	DisplayName         string
	RequiredLevel       grantdomain.HierarchyLevel
	HasFlag             bool
	HierarchySufficient bool
	CanAccess           bool
}

// Resolution is the full outcome of ResolvePermissions for one user.
type Resolution struct {
	UserID string
	// HasAnyGrant is false when the user has no active grant row. The map is
	// empty in that case; this is a normal outcome, not an error.
	HasAnyGrant    bool
	HierarchyLevel grantdomain.HierarchyLevel
	RoleName       string
	DisplayName    string
	// PerService holds one entry per active catalog service. Services absent
	// from the catalog are omitted, never reported as denied; callers must
	// treat absence as denial at the call site.
	PerService map[string]ResolvedPermission
	ResolvedAt time.Time
}

// Config holds the resolver tunables.
type Config struct {
	// CacheTTL bounds how long a cached resolution stays fresh.
	CacheTTL time.Duration
}

// DefaultConfig returns the production default: a 30s advisory cache.
func DefaultConfig() Config {
	return Config{CacheTTL: 30 * time.Second}
}

// Resolver resolves service permissions. Safe for concurrent use.
type Resolver struct {
	users    userrepo.Repository
	grants   grantrepo.Repository
	engine   engine.Evaluator
	cache    *resolutionCache
	auditLog audit.AuditLogger
	emitter  telemetry.EventEmitter
	metrics  *telemetry.Metrics
	nowF     func() time.Time
}

// NewResolver returns a Resolver with the given dependencies.
// auditLog, emitter, and metrics may be nil; the resolver then skips those signals.
func NewResolver(
	users userrepo.Repository,
	grants grantrepo.Repository,
	eval engine.Evaluator,
	auditLog audit.AuditLogger,
	emitter telemetry.EventEmitter,
	metrics *telemetry.Metrics,
	cfg Config,
) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Resolver{
		users:    users,
		grants:   grants,
		engine:   eval,
		cache:    newResolutionCache(cfg.CacheTTL),
		auditLog: auditLog,
		emitter:  emitter,
		metrics:  metrics,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// ResolvePermissions resolves the full per-service permission map for the
// user. A fresh cached resolution is reused; otherwise the grant, account
// status, and catalog are loaded and every catalog entry is evaluated.
//
// Returns ErrInactiveAccount when the account is missing or not active. A
// missing grant is not an error; the resolution reports HasAnyGrant = false
// with an empty map.
func (r *Resolver) ResolvePermissions(ctx context.Context, userID string) (*Resolution, error) {
	now := r.nowF()
	if res, ok := r.cache.get(userID, now); ok {
		return res, nil
	}

	res, err := r.resolve(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	r.cache.put(userID, res, now)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, userID string, now time.Time) (*Resolution, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, ErrInactiveAccount
	}

	res := &Resolution{
		UserID:      userID,
		RoleName:    u.RoleName,
		DisplayName: u.FullName,
		PerService:  make(map[string]ResolvedPermission),
		ResolvedAt:  now,
	}

	grant, err := r.grants.FindActiveGrant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return res, nil
	}
	res.HasAnyGrant = true
	res.HierarchyLevel = grant.HierarchyLevel

	catalog, err := r.grants.ListActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	for _, svc := range catalog {
		p, err := r.evaluate(ctx, grant, svc)
		if err != nil {
			return nil, err
		}
		res.PerService[svc.ServiceKey] = p
	}
	return res, nil
}

// CheckSingleService resolves one service for the user. A fresh cached full
// resolution answers directly; otherwise only the one catalog entry is
// loaded and evaluated, without populating the cache.
//
// Returns nil (no error) when the service is absent from the catalog or
// disabled; callers must treat that as denial.
func (r *Resolver) CheckSingleService(ctx context.Context, userID, serviceKey string) (*ResolvedPermission, error) {
	now := r.nowF()
	if res, ok := r.cache.get(userID, now); ok {
		if p, ok := res.PerService[serviceKey]; ok {
			r.recordOutcome(ctx, userID, &p)
			return &p, nil
		}
		// A full resolution covers the whole catalog, so a missing key means
		// the service does not exist or is disabled.
		return nil, nil
	}

	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, ErrInactiveAccount
	}

	svc, err := r.grants.GetActiveService(ctx, serviceKey)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, nil
	}

	grant, err := r.grants.FindActiveGrant(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := r.evaluate(ctx, grant, svc)
	if err != nil {
		return nil, err
	}
	r.recordOutcome(ctx, userID, &p)
	return &p, nil
}

// Invalidate drops the user's cached resolution. Administrative grant changes
// must call this so the next resolution is computed fresh.
func (r *Resolver) Invalidate(userID string) {
	r.cache.invalidate(userID)
}

func (r *Resolver) evaluate(ctx context.Context, grant *grantdomain.AccessGrant, svc *grantdomain.ServiceDefinition) (ResolvedPermission, error) {
	verdict, err := r.engine.EvaluateAccess(ctx, grant, svc)
	if err != nil {
		return ResolvedPermission{}, err
	}
	return ResolvedPermission{
		ServiceKey:          svc.ServiceKey,
		DisplayName:         svc.DisplayName,
		RequiredLevel:       svc.RequiredLevel,
		HasFlag:             verdict.HasFlag,
		HierarchySufficient: verdict.HierarchySufficient,
		CanAccess:           verdict.CanAccess,
	}, nil
}

func (r *Resolver) recordOutcome(ctx context.Context, userID string, p *ResolvedPermission) {
	outcome := "granted"
	if !p.CanAccess {
		outcome = "denied"
		if r.auditLog != nil {
			meta, _ := json.Marshal(map[string]any{
				"service_key":          p.ServiceKey,
				"has_flag":             p.HasFlag,
				"hierarchy_sufficient": p.HierarchySufficient,
			})
			r.auditLog.LogEvent(ctx, userID, audit.ActionPermissionDenied, audit.ResourceService, string(meta))
		}
		if r.emitter != nil {
			meta, _ := json.Marshal(map[string]any{"service_key": p.ServiceKey})
			telemetry.EmitAsync(r.emitter, ctx, &telemetry.Event{
				UserID:    userID,
				EventType: telemetry.EventPermissionDenied,
				Source:    "permission_resolver",
				Metadata:  meta,
				CreatedAt: r.nowF(),
			})
		}
	}
	r.metrics.PermissionCheck(ctx, outcome)
}
