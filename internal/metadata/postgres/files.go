package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type fileRepo struct{ s *Store }

func (r *fileRepo) Upsert(ctx context.Context, f *metadata.File) error {
	now := toMicros(nowFunc())

	if r.s.conn.Backend == BackendPostgres {
		q, args, err := r.s.conn.builder().
			Insert("files").
			Columns("repository_id", "branch", "path_in_repo", "sha256", "size", "lfs", "is_deleted", "created_at").
			Values(f.RepositoryID, f.Branch, f.PathInRepo, f.SHA256, f.Size, f.LFS, f.IsDeleted, now).
			Suffix("ON CONFLICT (repository_id, branch, path_in_repo) DO UPDATE SET "+
				"sha256 = EXCLUDED.sha256, size = EXCLUDED.size, lfs = EXCLUDED.lfs, "+
				"is_deleted = EXCLUDED.is_deleted, created_at = EXCLUDED.created_at").
			ToSql()
		if err != nil {
			return err
		}

		_, err = r.s.exec.ExecContext(ctx, q, args...)

		return err
	}

	q, args, err := r.s.conn.builder().
		Insert("files").
		Columns("repository_id", "branch", "path_in_repo", "sha256", "size", "lfs", "is_deleted", "created_at").
		Values(f.RepositoryID, f.Branch, f.PathInRepo, f.SHA256, f.Size, f.LFS, f.IsDeleted, now).
		Suffix("ON CONFLICT (repository_id, branch, path_in_repo) DO UPDATE SET "+
			"sha256 = excluded.sha256, size = excluded.size, lfs = excluded.lfs, "+
			"is_deleted = excluded.is_deleted, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *fileRepo) MarkDeleted(ctx context.Context, repoID int64, branch, path string) error {
	q, args, err := r.s.conn.builder().
		Update("files").
		Set("is_deleted", true).
		Set("created_at", toMicros(nowFunc())).
		Where(sq.Eq{"repository_id": repoID, "branch": branch, "path_in_repo": path}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *fileRepo) Find(ctx context.Context, repoID int64, branch, path string) (*metadata.File, error) {
	q, args, err := r.s.conn.builder().
		Select("id", "repository_id", "branch", "path_in_repo", "sha256", "size", "lfs", "is_deleted", "created_at").
		From("files").
		Where(sq.Eq{"repository_id": repoID, "branch": branch, "path_in_repo": path}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var f metadata.File

	var createdAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).
		Scan(&f.ID, &f.RepositoryID, &f.Branch, &f.PathInRepo, &f.SHA256, &f.Size, &f.LFS, &f.IsDeleted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityFile, "EntryNotFound", "file not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load file")
	}

	f.CreatedAt = fromMicros(createdAt)

	return &f, nil
}

func (r *fileRepo) ListByPrefix(ctx context.Context, repoID int64, branch, prefix, after string, limit int) ([]metadata.File, error) {
	builder := r.s.conn.builder().
		Select("id", "repository_id", "branch", "path_in_repo", "sha256", "size", "lfs", "is_deleted", "created_at").
		From("files").
		Where(sq.Eq{"repository_id": repoID, "branch": branch, "is_deleted": false})

	if prefix != "" {
		builder = builder.Where(sq.Like{"path_in_repo": prefix + "%"})
	}

	if after != "" {
		builder = builder.Where(sq.Gt{"path_in_repo": after})
	}

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q, args, err := builder.OrderBy("path_in_repo ASC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to list files")
	}
	defer rows.Close()

	var out []metadata.File

	for rows.Next() {
		var f metadata.File

		var createdAt int64

		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Branch, &f.PathInRepo, &f.SHA256, &f.Size, &f.LFS, &f.IsDeleted, &createdAt); err != nil {
			return nil, err
		}

		f.CreatedAt = fromMicros(createdAt)
		out = append(out, f)
	}

	return out, rows.Err()
}

func (r *fileRepo) FindAnyBySHA256(ctx context.Context, sha256 string) (*metadata.File, error) {
	q, args, err := r.s.conn.builder().
		Select("id", "repository_id", "branch", "path_in_repo", "sha256", "size", "lfs", "is_deleted", "created_at").
		From("files").
		Where(sq.Eq{"sha256": sha256, "is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var f metadata.File

	var createdAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).
		Scan(&f.ID, &f.RepositoryID, &f.Branch, &f.PathInRepo, &f.SHA256, &f.Size, &f.LFS, &f.IsDeleted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityFile, "EntryNotFound", "no file with that hash")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to look up file by hash")
	}

	f.CreatedAt = fromMicros(createdAt)

	return &f, nil
}

func (r *fileRepo) Move(ctx context.Context, repoID int64, branch, fromPath, toPath string) error {
	q, args, err := r.s.conn.builder().
		Update("files").
		Set("path_in_repo", toPath).
		Where(sq.Eq{"repository_id": repoID, "branch": branch, "path_in_repo": fromPath}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}
