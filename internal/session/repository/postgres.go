package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"interview-analyzer/internal/session/domain"
)

const sessionColumns = `id, user_id, secret_hash, expires_at, is_active, created_at`

// PostgresRepository persists sessions in the user_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts s. The plaintext secret is never written.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.SecretHash, s.ExpiresAt, s.Active, s.CreatedAt)
	return storageErr(err)
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id)
	return scanOne(row)
}

// ListByUser returns the user's sessions, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	out := make([]*domain.Session, 0)
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Extend sets the expiry of id in a single statement. Returns nil if not found.
func (r *PostgresRepository) Extend(ctx context.Context, id string, expiresAt time.Time) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE user_sessions SET expires_at = $2 WHERE id = $1 RETURNING `+sessionColumns, id, expiresAt)
	return scanOne(row)
}

// Deactivate clears the active flag of id.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET is_active = false WHERE id = $1`, id)
	return storageErr(err)
}

// DeactivateAllByUser clears the active flag of every active session owned by userID in one statement.
func (r *PostgresRepository) DeactivateAllByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, storageErr(err)
	}
	n, err := res.RowsAffected()
	return n, storageErr(err)
}

// DeleteStale removes inactive or expired sessions with a single predicate delete.
func (r *PostgresRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE NOT is_active OR expires_at <= $1`, now)
	if err != nil {
		return 0, storageErr(err)
	}
	n, err := res.RowsAffected()
	return n, storageErr(err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (*domain.Session, error) {
	var s domain.Session
	if err := sc.Scan(&s.ID, &s.UserID, &s.SecretHash, &s.ExpiresAt, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanOne(row *sql.Row) (*domain.Session, error) {
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	return s, nil
}

// storageErr marks driver failures as ErrStorageUnavailable while keeping the cause and any
// context cancellation matchable with errors.Is.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
