package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TxBeginner is implemented by *pgxpool.Pool. Services depend on this
// narrow interface rather than the concrete pool type so they can be
// exercised against a fake in unit tests.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AdvisoryLock wraps a Postgres session-level advisory lock, acquired via a
// single dedicated connection held for the lock's lifetime. The Lifecycle
// Ticker uses this to serialize global sale-transition sweeps across nodes.
type AdvisoryLock struct {
	conn *pgxpool.Conn
}

// AcquireAdvisoryLock blocks until it obtains the named lock (hashed to a
// bigint key) or ctx is done. Release must be called to give it back.
func AcquireAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, lockID string) (*AdvisoryLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}
	key := advisoryLockKey(lockID)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock %s: %w", lockID, err)
	}
	return &AdvisoryLock{conn: conn}, nil
}

// TryAcquireAdvisoryLock attempts the lock without blocking. ok is false if
// another session already holds it.
func TryAcquireAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, lockID string) (lock *AdvisoryLock, ok bool, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}
	key := advisoryLockKey(lockID)
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock %s: %w", lockID, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &AdvisoryLock{conn: conn}, true, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	defer l.conn.Release()
	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock_all()")
	if err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}
	return nil
}

// advisoryLockKey hashes a human-readable lock name into the bigint key
// Postgres advisory locks require (FNV-1a, collision risk accepted: the
// lock space here is a handful of named global sections).
func advisoryLockKey(lockID string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(lockID); i++ {
		h ^= uint64(lockID[i])
		h *= 1099511628211
	}
	return int64(h)
}

// NewPool creates a PostgreSQL connection pool with retry logic.
// Retries with exponential backoff: 1s, 2s, 4s, 8s, 16s (total ~31s before failure).
func NewPool(ctx context.Context, dsn string, maxRetries int) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	// Ensure at least one attempt even if maxRetries is 0
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		pool, err = pgxpool.New(ctx, dsn)
		if err == nil {
			// Verify connection actually works
			if pingErr := pool.Ping(ctx); pingErr == nil {
				log.Info().Msg("database connection established")
				return pool, nil
			} else {
				pool.Close()
				err = fmt.Errorf("ping failed: %w", pingErr)
			}
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", backoff).
			Msg("database connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
}
