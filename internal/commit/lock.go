package commit

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
)

// Locker serializes commits on the same (repoID, branch) key, spec
// §5's "advisory lock keyed on (repo_id, branch) held across steps
// 3-7". Two implementations are selectable by deployment shape.
type Locker interface {
	Lock(ctx context.Context, repoID int64, branch string) (unlock func(), err error)
}

// MutexLocker is an in-memory per-key mutex set, correct only within a
// single process — the single-worker deployment spec §5 explicitly
// allows.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMutexLocker builds an empty in-memory locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MutexLocker) Lock(_ context.Context, repoID int64, branch string) (func(), error) {
	key := fmt.Sprintf("%d/%s", repoID, branch)

	l.mu.Lock()
	m, ok := l.locks[key]

	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}

	l.mu.Unlock()

	m.Lock()

	return m.Unlock, nil
}

// PGAdvisoryLocker serializes commits across every process sharing one
// Postgres database via pg_advisory_lock, required once the hub runs
// more than one worker.
type PGAdvisoryLocker struct {
	db *sql.DB
}

// NewPGAdvisoryLocker wraps db for cross-process commit locking.
func NewPGAdvisoryLocker(db *sql.DB) *PGAdvisoryLocker {
	return &PGAdvisoryLocker{db: db}
}

func (l *PGAdvisoryLocker) Lock(ctx context.Context, repoID int64, branch string) (func(), error) {
	key := advisoryKey(repoID, branch)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Close()
		return nil, err
	}

	unlock := func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", key)
		conn.Close()
	}

	return unlock, nil
}

// advisoryKey folds (repoID, branch) into the single int64 key
// pg_advisory_lock takes.
func advisoryKey(repoID int64, branch string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d/%s", repoID, branch)

	return int64(h.Sum64()) //nolint:gosec // advisory lock key space is the full int64 range, sign is irrelevant
}
