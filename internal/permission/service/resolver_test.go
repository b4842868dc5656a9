package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	grantdomain "school-admin/backend/internal/grant/domain"
	"school-admin/backend/internal/policy/engine"
	userdomain "school-admin/backend/internal/user/domain"
)

type memUserRepo struct {
	mu sync.Mutex
	m  map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{m: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.m[id]; ok {
		u2 := *u
		return &u2, nil
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	r.m[u.ID] = &u2
	return nil
}

func (r *memUserRepo) UpdateStatus(ctx context.Context, id string, status userdomain.UserStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.m[id]
	if !ok {
		return false, nil
	}
	u.Status = status
	return true, nil
}

type memGrantRepo struct {
	mu          sync.Mutex
	grants      map[string]*grantdomain.AccessGrant
	services    map[string]*grantdomain.ServiceDefinition
	grantLoads  int
	catalogList int
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{
		grants:   make(map[string]*grantdomain.AccessGrant),
		services: make(map[string]*grantdomain.ServiceDefinition),
	}
}

func (r *memGrantRepo) FindActiveGrant(ctx context.Context, userID string) (*grantdomain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grantLoads++
	g, ok := r.grants[userID]
	if !ok || !g.Active {
		return nil, nil
	}
	g2 := *g
	return &g2, nil
}

func (r *memGrantRepo) ListActiveServices(ctx context.Context) ([]*grantdomain.ServiceDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogList++
	var out []*grantdomain.ServiceDefinition
	for _, s := range r.services {
		if s.Active {
			s2 := *s
			out = append(out, &s2)
		}
	}
	return out, nil
}

func (r *memGrantRepo) GetActiveService(ctx context.Context, serviceKey string) (*grantdomain.ServiceDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[serviceKey]
	if !ok || !s.Active {
		return nil, nil
	}
	s2 := *s
	return &s2, nil
}

func (r *memGrantRepo) UpsertGrant(ctx context.Context, g *grantdomain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g2 := *g
	r.grants[g.UserID] = &g2
	return nil
}

func (r *memGrantRepo) UpsertService(ctx context.Context, s *grantdomain.ServiceDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.services[s.ServiceKey] = &s2
	return nil
}

type fixture struct {
	users    *memUserRepo
	grants   *memGrantRepo
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	users := newMemUserRepo()
	grants := newMemGrantRepo()

	if err := users.Create(ctx, &userdomain.User{
		ID: "user-1", FullName: "Dana Reyes", RoleName: "counselor", Status: userdomain.UserStatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*grantdomain.ServiceDefinition{
		{ServiceKey: "wellness", DisplayName: "Wellness Cases", RequiredLevel: grantdomain.LevelStrategic, Active: true},
		{ServiceKey: "enrollment", DisplayName: "Enrollment", RequiredLevel: grantdomain.LevelTactical, Active: true},
		{ServiceKey: "admissions", DisplayName: "Admissions", RequiredLevel: grantdomain.LevelOperational, Active: true},
		{ServiceKey: "legacy_reports", DisplayName: "Legacy Reports", RequiredLevel: grantdomain.LevelOperational, Active: false},
	} {
		if err := grants.UpsertService(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	resolver := NewResolver(users, grants, engine.NewOPAEvaluator(nil), nil, nil, nil, Config{CacheTTL: time.Minute})
	return &fixture{users: users, grants: grants, resolver: resolver}
}

func (f *fixture) grantUser(t *testing.T, level grantdomain.HierarchyLevel, services map[string]bool) {
	t.Helper()
	err := f.grants.UpsertGrant(context.Background(), &grantdomain.AccessGrant{
		UserID: "user-1", HierarchyLevel: level, Active: true, Services: services,
		GrantedBy: "admin-1", GrantedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolvePermissions_NoGrantIsNormal(t *testing.T) {
	f := newFixture(t)

	res, err := f.resolver.ResolvePermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if res.HasAnyGrant {
		t.Error("HasAnyGrant should be false without a grant row")
	}
	if len(res.PerService) != 0 {
		t.Errorf("PerService has %d entries, want empty", len(res.PerService))
	}
	if res.DisplayName != "Dana Reyes" || res.RoleName != "counselor" {
		t.Errorf("identity = %q/%q, want Dana Reyes/counselor", res.DisplayName, res.RoleName)
	}
}

func TestResolvePermissions_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelStrategic, map[string]bool{"wellness": true})
	if _, err := f.users.UpdateStatus(context.Background(), "user-1", userdomain.UserStatusSuspended); err != nil {
		t.Fatal(err)
	}

	_, err := f.resolver.ResolvePermissions(context.Background(), "user-1")
	if !errors.Is(err, ErrInactiveAccount) {
		t.Errorf("error = %v, want ErrInactiveAccount", err)
	}
}

func TestResolvePermissions_UnknownUserIsInactive(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.ResolvePermissions(context.Background(), "no-such-user")
	if !errors.Is(err, ErrInactiveAccount) {
		t.Errorf("error = %v, want ErrInactiveAccount", err)
	}
}

func TestResolvePermissions_ConjunctiveVerdict(t *testing.T) {
	f := newFixture(t)
	// The flag is set but the tier is too low for wellness (requires strategic).
	f.grantUser(t, grantdomain.LevelTactical, map[string]bool{"wellness": true, "enrollment": true})

	res, err := f.resolver.ResolvePermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if !res.HasAnyGrant {
		t.Fatal("HasAnyGrant should be true")
	}
	if res.HierarchyLevel != grantdomain.LevelTactical {
		t.Errorf("HierarchyLevel = %s, want tactical", res.HierarchyLevel)
	}

	wellness, ok := res.PerService["wellness"]
	if !ok {
		t.Fatal("wellness missing from result")
	}
	if !wellness.HasFlag {
		t.Error("wellness.HasFlag should be true")
	}
	if wellness.HierarchySufficient {
		t.Error("wellness.HierarchySufficient should be false for tactical vs strategic")
	}
	if wellness.CanAccess {
		t.Error("wellness.CanAccess must be false; the conditions are conjunctive")
	}

	enrollment := res.PerService["enrollment"]
	if !enrollment.CanAccess {
		t.Error("enrollment should be accessible: flag set, tactical meets tactical")
	}

	admissions := res.PerService["admissions"]
	if admissions.HasFlag || admissions.CanAccess {
		t.Error("admissions has no flag and must be denied")
	}
	if !admissions.HierarchySufficient {
		t.Error("tactical should satisfy admissions' operational requirement")
	}
}

func TestResolvePermissions_DisabledServiceOmitted(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelStrategic, map[string]bool{"legacy_reports": true})

	res, err := f.resolver.ResolvePermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if _, ok := res.PerService["legacy_reports"]; ok {
		t.Error("disabled service must be omitted from the result, not reported as denied")
	}
}

func TestResolvePermissions_CacheAndInvalidate(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelOperational, map[string]bool{"admissions": true})
	ctx := context.Background()

	first, err := f.resolver.ResolvePermissions(ctx, "user-1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !first.PerService["admissions"].CanAccess {
		t.Fatal("admissions should be accessible")
	}

	// Administrative change without invalidation: the advisory cache still
	// serves the old resolution.
	f.grantUser(t, grantdomain.LevelOperational, map[string]bool{})
	stale, err := f.resolver.ResolvePermissions(ctx, "user-1")
	if err != nil {
		t.Fatalf("stale resolve: %v", err)
	}
	if !stale.PerService["admissions"].CanAccess {
		t.Error("cached resolution should still apply before invalidation")
	}

	f.resolver.Invalidate("user-1")
	fresh, err := f.resolver.ResolvePermissions(ctx, "user-1")
	if err != nil {
		t.Fatalf("fresh resolve: %v", err)
	}
	if fresh.PerService["admissions"].CanAccess {
		t.Error("invalidation must force a fresh resolution reflecting the revoked flag")
	}
}

func TestResolvePermissions_CacheExpiresByTTL(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelOperational, map[string]bool{"admissions": true})
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := base
	f.resolver.nowF = func() time.Time { return clock }

	if _, err := f.resolver.ResolvePermissions(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	loads := f.grants.grantLoads

	clock = base.Add(30 * time.Second)
	if _, err := f.resolver.ResolvePermissions(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if f.grants.grantLoads != loads {
		t.Error("fresh cache entry should answer without hitting the store")
	}

	clock = base.Add(2 * time.Minute)
	if _, err := f.resolver.ResolvePermissions(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if f.grants.grantLoads == loads {
		t.Error("expired cache entry should trigger a fresh load")
	}
}

func TestCheckSingleService_NarrowPath(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelTactical, map[string]bool{"enrollment": true})
	ctx := context.Background()

	p, err := f.resolver.CheckSingleService(ctx, "user-1", "enrollment")
	if err != nil {
		t.Fatalf("CheckSingleService: %v", err)
	}
	if p == nil || !p.CanAccess {
		t.Fatalf("verdict = %+v, want accessible", p)
	}
	if f.grants.catalogList != 0 {
		t.Error("single check must not load the full catalog")
	}
}

func TestCheckSingleService_UsesFreshCache(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelTactical, map[string]bool{"enrollment": true})
	ctx := context.Background()

	if _, err := f.resolver.ResolvePermissions(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	loads := f.grants.grantLoads

	p, err := f.resolver.CheckSingleService(ctx, "user-1", "enrollment")
	if err != nil {
		t.Fatalf("CheckSingleService: %v", err)
	}
	if p == nil || !p.CanAccess {
		t.Fatalf("verdict = %+v, want accessible", p)
	}
	if f.grants.grantLoads != loads {
		t.Error("single check should reuse the cached resolution")
	}
}

func TestCheckSingleService_UnknownServiceIsNil(t *testing.T) {
	f := newFixture(t)
	f.grantUser(t, grantdomain.LevelStrategic, map[string]bool{"wellness": true})
	ctx := context.Background()

	p, err := f.resolver.CheckSingleService(ctx, "user-1", "payroll")
	if err != nil {
		t.Fatalf("CheckSingleService: %v", err)
	}
	if p != nil {
		t.Errorf("verdict = %+v, want nil for a service absent from the catalog", p)
	}

	p, err = f.resolver.CheckSingleService(ctx, "user-1", "legacy_reports")
	if err != nil {
		t.Fatalf("CheckSingleService: %v", err)
	}
	if p != nil {
		t.Errorf("verdict = %+v, want nil for a disabled service", p)
	}
}

func TestCheckSingleService_NoGrantDenies(t *testing.T) {
	f := newFixture(t)

	p, err := f.resolver.CheckSingleService(context.Background(), "user-1", "enrollment")
	if err != nil {
		t.Fatalf("CheckSingleService: %v", err)
	}
	if p == nil {
		t.Fatal("catalog entry exists; verdict should be present")
	}
	if p.HasFlag || p.CanAccess {
		t.Errorf("verdict = %+v, want denied without a grant", p)
	}
}
