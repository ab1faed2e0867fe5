package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrEmptyDSN is returned when no connection string is configured.
var ErrEmptyDSN = errors.New("database DSN is empty")

// Open opens a Postgres connection using the given DSN. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithRetry calls Open with exponential backoff until it succeeds, attempts are exhausted,
// or ctx is done. An empty DSN fails immediately.
func OpenWithRetry(ctx context.Context, logger logr.Logger, dsn string, attempts uint) (*sql.DB, error) {
	if attempts == 0 {
		attempts = 1
	}
	op := func() (*sql.DB, error) {
		db, err := Open(dsn)
		if errors.Is(err, ErrEmptyDSN) {
			return nil, backoff.Permanent(err)
		}
		return db, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Info("database not ready, retrying", "err", err.Error(), "retryIn", next.String())
		}),
	)
}
