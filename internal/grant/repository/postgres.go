package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"school-admin/backend/internal/grant/domain"
)

const grantColumns = `user_id, hierarchy_level, active, service_flags, granted_by, granted_at, notes`

// PostgresRepository implements Repository over the access_grants and
// service_definitions tables. Service flags live in a JSONB column keyed by
// service key.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a grant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindActiveGrant returns the user's active grant, or nil if the user has none.
func (r *PostgresRepository) FindActiveGrant(ctx context.Context, userID string) (*domain.AccessGrant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE user_id = $1 AND active`, userID)

	g := &domain.AccessGrant{}
	var level string
	var flags []byte
	err := row.Scan(&g.UserID, &level, &g.Active, &flags, &g.GrantedBy, &g.GrantedAt, &g.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.HierarchyLevel = domain.HierarchyLevel(level)
	if err := json.Unmarshal(flags, &g.Services); err != nil {
		return nil, err
	}
	return g, nil
}

// ListActiveServices returns the active catalog entries ordered by key.
func (r *PostgresRepository) ListActiveServices(ctx context.Context) ([]*domain.ServiceDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT service_key, display_name, required_hierarchy_level, active
		 FROM service_definitions WHERE active ORDER BY service_key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ServiceDefinition
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetActiveService returns one active catalog entry, or nil if absent or disabled.
func (r *PostgresRepository) GetActiveService(ctx context.Context, serviceKey string) (*domain.ServiceDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT service_key, display_name, required_hierarchy_level, active
		 FROM service_definitions WHERE service_key = $1 AND active`, serviceKey)

	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertGrant inserts or replaces the user's grant row.
func (r *PostgresRepository) UpsertGrant(ctx context.Context, g *domain.AccessGrant) error {
	flags, err := json.Marshal(g.Services)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO access_grants (`+grantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   hierarchy_level = EXCLUDED.hierarchy_level,
		   active          = EXCLUDED.active,
		   service_flags   = EXCLUDED.service_flags,
		   granted_by      = EXCLUDED.granted_by,
		   granted_at      = EXCLUDED.granted_at,
		   notes           = EXCLUDED.notes`,
		g.UserID, string(g.HierarchyLevel), g.Active, flags, g.GrantedBy, g.GrantedAt, g.Notes)
	return err
}

// UpsertService inserts or replaces one catalog entry.
func (r *PostgresRepository) UpsertService(ctx context.Context, s *domain.ServiceDefinition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_definitions (service_key, display_name, required_hierarchy_level, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (service_key) DO UPDATE SET
		   display_name             = EXCLUDED.display_name,
		   required_hierarchy_level = EXCLUDED.required_hierarchy_level,
		   active                   = EXCLUDED.active`,
		s.ServiceKey, s.DisplayName, string(s.RequiredLevel), s.Active)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*domain.ServiceDefinition, error) {
	s := &domain.ServiceDefinition{}
	var level string
	if err := row.Scan(&s.ServiceKey, &s.DisplayName, &level, &s.Active); err != nil {
		return nil, err
	}
	s.RequiredLevel = domain.HierarchyLevel(level)
	return s, nil
}
