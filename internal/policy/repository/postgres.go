package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"school-admin/backend/internal/policy/domain"
)

const policyColumns = `id, name, rules, enabled, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AccessPolicy, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM access_policies WHERE id = $1`, id)

	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListEnabled returns the enabled policies, oldest first.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.AccessPolicy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM access_policies WHERE enabled ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AccessPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create persists the policy. Assigns a UUID when the policy has no ID.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.AccessPolicy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_policies (`+policyColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update updates the existing policy record in the database.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.AccessPolicy) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_policies SET name = $2, rules = $3, enabled = $4, updated_at = $5 WHERE id = $1`,
		p.ID, p.Name, p.Rules, p.Enabled, p.UpdatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.AccessPolicy, error) {
	p := &domain.AccessPolicy{}
	if err := row.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}
