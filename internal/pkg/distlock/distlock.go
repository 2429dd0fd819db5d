// Package distlock provides cross-process mutual exclusion for live
// evaluations. The orchestrator takes one lock per customer so that two
// engine instances never read-then-write the same cooldown state at once.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a single-use, single-goroutine lock handle.
type DistLock interface {
	// Acquire tries to take the lock without blocking. True on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this handle still owns it.
	Release(ctx context.Context) error
}

// New picks the best available backend: Redis when a client is configured
// (works across hosts), else a Postgres advisory lock (released with the
// session, so a crashed evaluator cannot wedge a customer).
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewAdvisoryLock(db, key)
}

// AdvisoryLock implements DistLock over pg_try_advisory_lock. Advisory
// locks are session-scoped, so the lock and unlock must run on the same
// connection: Acquire pins one out of the pool and Release unlocks on it
// before handing it back. Unlocking through the pooled *sql.DB would hit
// an arbitrary session, silently no-op, and leave the lock held by an
// idle connection.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewAdvisoryLock derives a stable 64-bit lock id from the key.
func NewAdvisoryLock(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *AdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	var released bool
	err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID).Scan(&released)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("advisory lock %d: session did not hold the lock", l.lockID)
	}
	return closeErr
}
