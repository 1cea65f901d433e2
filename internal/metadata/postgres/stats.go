package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type statsRepo struct{ s *Store }

// IncrementDownload folds one download event into the (repository, date)
// row, creating it on first sight of the day — the daily-aggregation shape
// spec §4.I expects from the stats consumer.
func (r *statsRepo) IncrementDownload(ctx context.Context, repoID int64, date string, authenticated bool) error {
	authCol, anonCol := int64(0), int64(1)
	if authenticated {
		authCol, anonCol = 1, 0
	}

	conflictDo := "DO UPDATE SET download_sessions = download_sessions + 1, " +
		"authenticated_downloads = authenticated_downloads + ?, " +
		"anonymous_downloads = anonymous_downloads + ?"

	q, args, err := r.s.conn.builder().
		Insert("daily_repo_stats").
		Columns("repository_id", "date", "download_sessions", "authenticated_downloads", "anonymous_downloads", "total_files").
		Values(repoID, date, 1, authCol, anonCol, 0).
		Suffix("ON CONFLICT (repository_id, date) "+conflictDo, authCol, anonCol).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *statsRepo) ListForRepo(ctx context.Context, repoID int64, sinceDate string) ([]metadata.DailyRepoStats, error) {
	q, args, err := r.s.conn.builder().
		Select("repository_id", "date", "download_sessions", "authenticated_downloads", "anonymous_downloads", "total_files").
		From("daily_repo_stats").
		Where(sq.Eq{"repository_id": repoID}).
		Where(sq.GtOrEq{"date": sinceDate}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.scanMany(ctx, q, args)
}

func (r *statsRepo) TrendingCandidates(ctx context.Context, sinceDate string) ([]metadata.DailyRepoStats, error) {
	q, args, err := r.s.conn.builder().
		Select("repository_id", "date", "download_sessions", "authenticated_downloads", "anonymous_downloads", "total_files").
		From("daily_repo_stats").
		Where(sq.GtOrEq{"date": sinceDate}).
		OrderBy("repository_id ASC, date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.scanMany(ctx, q, args)
}

func (r *statsRepo) scanMany(ctx context.Context, q string, args []any) ([]metadata.DailyRepoStats, error) {
	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load daily stats")
	}
	defer rows.Close()

	var out []metadata.DailyRepoStats

	for rows.Next() {
		var d metadata.DailyRepoStats
		if err := rows.Scan(&d.RepositoryID, &d.Date, &d.DownloadSessions, &d.AuthenticatedDownloads, &d.AnonymousDownloads, &d.TotalFiles); err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	return out, rows.Err()
}
