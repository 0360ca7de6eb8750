package db

import (
	"context"
	"fmt"
)

// Advisory locks are session-scoped in PostgreSQL: the unlock must run on
// the same connection that acquired the lock. Each held lock therefore pins
// one pooled connection until it is released.

// TryAcquireAdvisoryLock attempts a non-blocking session advisory lock.
// The aggregator uses it to guarantee that no two cycles for the same date
// run concurrently. On success the acquiring connection stays checked out
// until ReleaseAdvisoryLock is called with the same lock ID.
func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	if !acquired {
		conn.Release()
		return false, nil
	}

	db.lockMu.Lock()
	db.lockConns[lockID] = conn
	db.lockMu.Unlock()

	return true, nil
}

// ReleaseAdvisoryLock unlocks on the pinned connection and returns it to
// the pool. Releasing a lock this process does not hold is a no-op.
func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	db.lockMu.Lock()
	conn := db.lockConns[lockID]
	delete(db.lockConns, lockID)
	db.lockMu.Unlock()

	if conn == nil {
		return nil
	}

	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, lockID); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}

	return nil
}
