package postgres

import (
	"context"
	"time"
)

// nowFunc is a seam for tests; production always uses time.Now.
var nowFunc = time.Now

// returningIDSuffix picks the SQL suffix needed to get the inserted row's
// id back: Postgres supports RETURNING, SQLite does not and needs
// last_insert_rowid() instead (handled in insertReturningID).
func returningIDSuffix(backend Backend) string {
	if backend == BackendPostgres {
		return "RETURNING id"
	}

	return ""
}

// insertReturningID executes an INSERT and returns the new row's id,
// using RETURNING on Postgres and LastInsertId on SQLite.
func (s *Store) insertReturningID(ctx context.Context, query string, args []any) (int64, error) {
	if s.conn.Backend == BackendPostgres {
		var id int64
		if err := s.exec.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}

		return id, nil
	}

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}
