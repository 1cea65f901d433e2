package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type lfsRepo struct{ s *Store }

// Touch records sha256 as seen, inserting it with size on first sight or
// bumping last_seen_at on repeat sight — the append-only dedup registry
// spec §3 calls LFSObjectHistory.
func (r *lfsRepo) Touch(ctx context.Context, sha256 string, size int64) error {
	now := toMicros(nowFunc())

	conflictTarget := "(sha256)"
	if r.s.conn.Backend == BackendPostgres {
		q, args, err := r.s.conn.builder().
			Insert("lfs_object_history").
			Columns("sha256", "size", "first_seen_at", "last_seen_at").
			Values(sha256, size, now, now).
			Suffix("ON CONFLICT "+conflictTarget+" DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at").
			ToSql()
		if err != nil {
			return err
		}

		_, err = r.s.exec.ExecContext(ctx, q, args...)

		return err
	}

	q, args, err := r.s.conn.builder().
		Insert("lfs_object_history").
		Columns("sha256", "size", "first_seen_at", "last_seen_at").
		Values(sha256, size, now, now).
		Suffix("ON CONFLICT "+conflictTarget+" DO UPDATE SET last_seen_at = excluded.last_seen_at").
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *lfsRepo) Find(ctx context.Context, sha256 string) (*metadata.LFSObjectHistory, error) {
	q, args, err := r.s.conn.builder().
		Select("sha256", "size", "first_seen_at", "last_seen_at").
		From("lfs_object_history").Where(sq.Eq{"sha256": sha256}).ToSql()
	if err != nil {
		return nil, err
	}

	var h metadata.LFSObjectHistory

	var first, last int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&h.SHA256, &h.Size, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityLFSObject, "", "lfs object not known")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load lfs object history")
	}

	h.FirstSeenAt = fromMicros(first)
	h.LastSeenAt = fromMicros(last)

	return &h, nil
}
