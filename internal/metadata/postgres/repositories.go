package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// repositoryRepo implements metadata.RepositoryRepository, grounded
// directly on organization.postgresql.go's query-building/pagination shape.
type repositoryRepo struct{ s *Store }

const repositoriesColumns = "id, repo_type, namespace, name, full_id, private, owner_id, created_at, " +
	"quota_bytes, used_bytes, lfs_threshold_bytes, lfs_keep_versions, lfs_suffix_rules, " +
	"downloads, likes_count, vos_repo_name, default_branch"

func scanRepository(row interface{ Scan(...any) error }) (*metadata.Repository, error) {
	var repo metadata.Repository

	var repoType string

	var createdAt int64

	var suffixRules string

	err := row.Scan(&repo.ID, &repoType, &repo.Namespace, &repo.Name, &repo.FullID, &repo.Private,
		&repo.OwnerID, &createdAt, &repo.QuotaBytes, &repo.UsedBytes, &repo.LFSThresholdBytes,
		&repo.LFSKeepVersions, &suffixRules, &repo.Downloads, &repo.LikesCount,
		&repo.VOSRepoName, &repo.DefaultBranch)
	if err != nil {
		return nil, err
	}

	repo.RepoType = metadata.RepoType(repoType)
	repo.CreatedAt = fromMicros(createdAt)

	if suffixRules != "" {
		if err := json.Unmarshal([]byte(suffixRules), &repo.LFSSuffixRules); err != nil {
			return nil, fmt.Errorf("corrupt lfs_suffix_rules: %w", err)
		}
	}

	return &repo, nil
}

func (r *repositoryRepo) Create(ctx context.Context, repo *metadata.Repository) (*metadata.Repository, error) {
	suffixRules, err := json.Marshal(repo.LFSSuffixRules)
	if err != nil {
		return nil, apperr.NewValidation("BadRequest", "invalid lfs suffix rules")
	}

	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}

	q, args, err := r.s.conn.builder().
		Insert("repositories").
		Columns("repo_type", "namespace", "name", "full_id", "private", "owner_id", "created_at",
			"quota_bytes", "lfs_threshold_bytes", "lfs_keep_versions", "lfs_suffix_rules",
			"vos_repo_name", "default_branch").
		Values(string(repo.RepoType), repo.Namespace, repo.Name, repo.FullID, repo.Private, repo.OwnerID,
			toMicros(nowFunc()), repo.QuotaBytes, repo.LFSThresholdBytes, repo.LFSKeepVersions,
			string(suffixRules), repo.VOSRepoName, repo.DefaultBranch).
		Suffix(returningIDSuffix(r.s.conn.Backend)).
		ToSql()
	if err != nil {
		return nil, err
	}

	id, err := r.s.insertReturningID(ctx, q, args)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict(apperr.EntityRepository, "RepoExists", "repository already exists")
		}

		return nil, apperr.WrapInternal(err, "ServerError", "failed to create repository")
	}

	return r.FindByID(ctx, id)
}

func (r *repositoryRepo) FindByFullID(ctx context.Context, repoType metadata.RepoType, namespace, name string) (*metadata.Repository, error) {
	q, args, err := r.s.conn.builder().
		Select(repositoriesColumns).From("repositories").
		Where(sq.Eq{"repo_type": string(repoType), "namespace": namespace, "name": name}).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *repositoryRepo) FindByID(ctx context.Context, id int64) (*metadata.Repository, error) {
	q, args, err := r.s.conn.builder().Select(repositoriesColumns).From("repositories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *repositoryRepo) FindByVOSName(ctx context.Context, vosName string) (*metadata.Repository, error) {
	q, args, err := r.s.conn.builder().
		Select(repositoriesColumns).From("repositories").Where(sq.Eq{"vos_repo_name": vosName}).ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *repositoryRepo) findOne(ctx context.Context, q string, args []any) (*metadata.Repository, error) {
	repo, err := scanRepository(r.s.exec.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", "repository not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load repository")
	}

	return repo, nil
}

func (r *repositoryRepo) List(ctx context.Context, f metadata.RepositoryFilter) ([]metadata.Repository, error) {
	builder := r.s.conn.builder().Select(repositoriesColumns).From("repositories")

	if f.RepoType != "" {
		builder = builder.Where(sq.Eq{"repo_type": string(f.RepoType)})
	}

	if f.Author != "" {
		builder = builder.Where(sq.Eq{"namespace": f.Author})
	}

	if f.Search != "" {
		builder = builder.Where(sq.Like{"name": "%" + f.Search + "%"})
	}

	if f.PublicOnly {
		builder = builder.Where(sq.Eq{"private": false})
	}

	limit := uint64(f.Limit)
	if limit == 0 || limit > 1000 {
		limit = 50
	}

	q, args, err := builder.OrderBy("id DESC").Limit(limit).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to list repositories")
	}
	defer rows.Close()

	var out []metadata.Repository

	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *repo)
	}

	return out, rows.Err()
}

func (r *repositoryRepo) Update(ctx context.Context, repo *metadata.Repository) (*metadata.Repository, error) {
	suffixRules, err := json.Marshal(repo.LFSSuffixRules)
	if err != nil {
		return nil, apperr.NewValidation("BadRequest", "invalid lfs suffix rules")
	}

	q, args, err := r.s.conn.builder().
		Update("repositories").
		Set("private", repo.Private).
		Set("quota_bytes", repo.QuotaBytes).
		Set("lfs_threshold_bytes", repo.LFSThresholdBytes).
		Set("lfs_keep_versions", repo.LFSKeepVersions).
		Set("lfs_suffix_rules", string(suffixRules)).
		Set("likes_count", repo.LikesCount).
		Set("used_bytes", repo.UsedBytes).
		Where(sq.Eq{"id": repo.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to update repository")
	}

	return r.FindByID(ctx, repo.ID)
}

func (r *repositoryRepo) Delete(ctx context.Context, id int64) error {
	q, args, err := r.s.conn.builder().Delete("repositories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to delete repository")
	}

	return nil
}

func (r *repositoryRepo) ApplyUsageDelta(ctx context.Context, id int64, delta int64) error {
	q, args, err := r.s.conn.builder().
		Update("repositories").
		Set("used_bytes", sq.Expr("used_bytes + ?", delta)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *repositoryRepo) IncrementDownloads(ctx context.Context, id int64, by int64) error {
	q, args, err := r.s.conn.builder().
		Update("repositories").
		Set("downloads", sq.Expr("downloads + ?", by)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}
