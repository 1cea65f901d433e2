package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type fallbackRepo struct{ s *Store }

// ListEnabled returns enabled sources for namespace (a namespace-scoped
// override) UNIONed with the global ("") sources, ordered by priority —
// lower priority value wins, per spec §3/§4.H.
func (r *fallbackRepo) ListEnabled(ctx context.Context, namespace string) ([]metadata.FallbackSource, error) {
	namespaces := []string{""}
	if namespace != "" {
		namespaces = append(namespaces, namespace)
	}

	q, args, err := r.s.conn.builder().
		Select("id", "namespace", "url", "name", "source_type", "priority", "encrypted_token", "enabled").
		From("fallback_sources").
		Where(sq.Eq{"namespace": namespaces}).
		Where(sq.Eq{"enabled": true}).
		OrderBy("priority ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to list fallback sources")
	}
	defer rows.Close()

	var out []metadata.FallbackSource

	for rows.Next() {
		var s metadata.FallbackSource

		var sourceType string

		if err := rows.Scan(&s.ID, &s.Namespace, &s.URL, &s.Name, &sourceType, &s.Priority, &s.EncryptedToken, &s.Enabled); err != nil {
			return nil, err
		}

		s.SourceType = metadata.SourceType(sourceType)
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *fallbackRepo) FindUserToken(ctx context.Context, userID int64, url string) (*metadata.UserExternalToken, error) {
	q, args, err := r.s.conn.builder().
		Select("user_id", "url", "encrypted_token").
		From("user_external_tokens").
		Where(sq.Eq{"user_id": userID, "url": url}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var t metadata.UserExternalToken

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&t.UserID, &t.URL, &t.EncryptedToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("", "", "no user override token for source")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load user token")
	}

	return &t, nil
}

func (r *fallbackRepo) UpsertUserToken(ctx context.Context, t *metadata.UserExternalToken) error {
	conflictCols := "(user_id, url)"

	doUpdate := "DO UPDATE SET encrypted_token = EXCLUDED.encrypted_token"
	if r.s.conn.Backend == BackendSQLite {
		doUpdate = "DO UPDATE SET encrypted_token = excluded.encrypted_token"
	}

	q, args, err := r.s.conn.builder().
		Insert("user_external_tokens").
		Columns("user_id", "url", "encrypted_token").
		Values(t.UserID, t.URL, t.EncryptedToken).
		Suffix("ON CONFLICT " + conflictCols + " " + doUpdate).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}
