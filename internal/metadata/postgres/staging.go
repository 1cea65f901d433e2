package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type stagingRepo struct{ s *Store }

func (r *stagingRepo) Create(ctx context.Context, su *metadata.StagingUpload) error {
	q, args, err := r.s.conn.builder().
		Insert("staging_uploads").
		Columns("upload_id", "repository_id", "path", "size", "sha256", "created_at").
		Values(su.UploadID, su.RepositoryID, su.Path, su.Size, su.SHA256, toMicros(nowFunc())).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)
	if err != nil && isUniqueViolation(err) {
		return apperr.NewConflict("", "EntityConflict", "upload already in progress")
	}

	return err
}

func (r *stagingRepo) Find(ctx context.Context, uploadID string) (*metadata.StagingUpload, error) {
	q, args, err := r.s.conn.builder().
		Select("upload_id", "repository_id", "path", "size", "sha256", "created_at").
		From("staging_uploads").Where(sq.Eq{"upload_id": uploadID}).ToSql()
	if err != nil {
		return nil, err
	}

	var su metadata.StagingUpload

	var createdAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).
		Scan(&su.UploadID, &su.RepositoryID, &su.Path, &su.Size, &su.SHA256, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("", "", "staging upload not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load staging upload")
	}

	su.CreatedAt = fromMicros(createdAt)

	return &su, nil
}

func (r *stagingRepo) Delete(ctx context.Context, uploadID string) error {
	q, args, err := r.s.conn.builder().Delete("staging_uploads").Where(sq.Eq{"upload_id": uploadID}).ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *stagingRepo) ListOlderThan(ctx context.Context, cutoff int64) ([]metadata.StagingUpload, error) {
	q, args, err := r.s.conn.builder().
		Select("upload_id", "repository_id", "path", "size", "sha256", "created_at").
		From("staging_uploads").Where(sq.Lt{"created_at": cutoff}).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metadata.StagingUpload

	for rows.Next() {
		var su metadata.StagingUpload

		var createdAt int64

		if err := rows.Scan(&su.UploadID, &su.RepositoryID, &su.Path, &su.Size, &su.SHA256, &createdAt); err != nil {
			return nil, err
		}

		su.CreatedAt = fromMicros(createdAt)
		out = append(out, su)
	}

	return out, rows.Err()
}
