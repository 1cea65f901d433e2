package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type commitRepo struct{ s *Store }

func (r *commitRepo) Create(ctx context.Context, c *metadata.Commit) (*metadata.Commit, error) {
	now := toMicros(nowFunc())

	q, args, err := r.s.conn.builder().
		Insert("commits").
		Columns("commit_id", "repository_id", "repo_type", "branch", "author_id",
			"username", "message", "description", "created_at").
		Values(c.CommitID, c.RepositoryID, string(c.RepoType), c.Branch, c.AuthorID,
			c.Username, c.Message, c.Description, now).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict(apperr.EntityCommit, "EntityConflict", "commit already recorded")
		}

		return nil, apperr.WrapInternal(err, "ServerError", "failed to record commit")
	}

	c.CreatedAt = fromMicros(now)

	return c, nil
}

func (r *commitRepo) Exists(ctx context.Context, repoID int64, commitID string) (bool, error) {
	q, args, err := r.s.conn.builder().
		Select("1").From("commits").
		Where(sq.Eq{"repository_id": repoID, "commit_id": commitID}).
		ToSql()
	if err != nil {
		return false, err
	}

	var one int

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, apperr.WrapInternal(err, "ServerError", "failed to check commit")
	}

	return true, nil
}

func (r *commitRepo) List(ctx context.Context, repoID int64, branch, after string, limit int) ([]metadata.Commit, error) {
	builder := r.s.conn.builder().
		Select("commit_id", "repository_id", "repo_type", "branch", "author_id",
			"username", "message", "description", "created_at").
		From("commits").
		Where(sq.Eq{"repository_id": repoID, "branch": branch})

	if after != "" {
		builder = builder.Where(sq.Lt{"commit_id": after})
	}

	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	q, args, err := builder.OrderBy("created_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to list commits")
	}
	defer rows.Close()

	var out []metadata.Commit

	for rows.Next() {
		var c metadata.Commit

		var repoType string

		var createdAt int64

		if err := rows.Scan(&c.CommitID, &c.RepositoryID, &repoType, &c.Branch, &c.AuthorID,
			&c.Username, &c.Message, &c.Description, &createdAt); err != nil {
			return nil, err
		}

		c.RepoType = metadata.RepoType(repoType)
		c.CreatedAt = fromMicros(createdAt)
		out = append(out, c)
	}

	return out, rows.Err()
}
