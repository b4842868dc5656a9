package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"school-admin/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, token_hash, device_browser, device_os, device_class,
	device_user_agent, device_captured_at, created_at, expires_at, last_activity_at, is_active`

// PostgresRepository implements Repository backed by the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByUserAndTokenHash returns the session for (userID, tokenHash), or nil if not found.
func (r *PostgresRepository) GetByUserAndTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND token_hash = $2`, userID, tokenHash)
	return scanSession(row)
}

// ListLiveByUser returns the user's active, unexpired sessions, oldest first.
func (r *PostgresRepository) ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active AND expires_at > $2
		 ORDER BY created_at ASC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session. Assigns a UUID when the session has no ID.
// Returns ErrDuplicateTokenHash when the unique token_hash index rejects the insert.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.UserID, s.TokenHash,
		s.Device.Browser, s.Device.OS, string(s.Device.Class), s.Device.UserAgent, s.Device.CapturedAt,
		s.CreatedAt, s.ExpiresAt, s.LastActivityAt, s.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTokenHash
		}
		return err
	}
	return nil
}

// UpdateLastActivity sets last_activity_at for the session.
// Returns false when no row matched (session is gone).
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateExpiry sets expires_at for the session.
// Returns false when no row matched (session is gone).
func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByID removes the session. Missing rows are not an error.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteByUser removes all of the user's sessions and returns the count.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes all sessions store-wide whose expiry is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LockUser takes a Postgres advisory lock keyed by the user ID on a dedicated
// connection, serializing the count-evict-insert sequence across processes.
// The returned unlock releases the lock and the connection.
func (r *PostgresRepository) LockUser(ctx context.Context, userID string) (func(), error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, userID); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, userID); err != nil {
			log.Printf("session: advisory unlock for user %s: %v", userID, err)
		}
		_ = conn.Close()
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanSessionRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSessionRows(row rowScanner) (*domain.Session, error) {
	var (
		s     domain.Session
		class string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash,
		&s.Device.Browser, &s.Device.OS, &class, &s.Device.UserAgent, &s.Device.CapturedAt,
		&s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt, &s.IsActive,
	)
	if err != nil {
		return nil, err
	}
	s.Device.Class = domain.DeviceClass(class)
	return &s, nil
}
