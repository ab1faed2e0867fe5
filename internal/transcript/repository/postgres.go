package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"interview-analyzer/internal/transcript/domain"
)

const transcriptColumns = `id, user_id, original_filename, encrypted_content, content_hash, file_size,
	qa_pairs, qa_pairs_count, processing_duration_ms, created_at`

// PostgresRepository persists transcripts in the transcripts table. QA pairs are stored as JSONB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a transcript repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *domain.Transcript) error {
	pairs := t.QAPairs
	if pairs == nil {
		pairs = []domain.QAPair{}
	}
	qa, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("encode qa pairs: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transcripts (`+transcriptColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.UserID, t.OriginalFilename, t.EncryptedContent, t.ContentHash, t.FileSize,
		qa, t.QAPairsCount, t.ProcessingDurationMs, t.CreatedAt)
	return storageErr(err)
}

// GetByID returns the transcript for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Transcript, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = $1`, id)
	t, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	return t, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transcript, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	out := make([]*domain.Transcript, 0)
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (*domain.Transcript, error) {
	var (
		t  domain.Transcript
		qa []byte
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.OriginalFilename, &t.EncryptedContent, &t.ContentHash, &t.FileSize,
		&qa, &t.QAPairsCount, &t.ProcessingDurationMs, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(qa) > 0 {
		if err := json.Unmarshal(qa, &t.QAPairs); err != nil {
			return nil, fmt.Errorf("decode qa pairs: %w", err)
		}
	}
	return &t, nil
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
