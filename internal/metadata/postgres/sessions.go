package postgres

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) CreateSession(ctx context.Context, sess *metadata.Session) (*metadata.Session, error) {
	now := toMicros(nowFunc())

	q, args, err := r.s.conn.builder().
		Insert("sessions").
		Columns("session_id", "user_id", "secret", "expires_at", "created_at").
		Values(sess.SessionID, sess.UserID, sess.Secret, toMicros(sess.ExpiresAt), now).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to create session")
	}

	sess.CreatedAt = fromMicros(now)

	return sess, nil
}

func (r *sessionRepo) FindSession(ctx context.Context, sessionID string) (*metadata.Session, error) {
	q, args, err := r.s.conn.builder().
		Select("session_id", "user_id", "secret", "expires_at", "created_at").
		From("sessions").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return nil, err
	}

	var s metadata.Session

	var expiresAt, createdAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&s.SessionID, &s.UserID, &s.Secret, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewUnauthorized("Unauthorized", "session not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load session")
	}

	s.ExpiresAt = fromMicros(expiresAt)
	s.CreatedAt = fromMicros(createdAt)

	return &s, nil
}

func (r *sessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	q, args, err := r.s.conn.builder().Delete("sessions").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *sessionRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	q, args, err := r.s.conn.builder().
		Delete("sessions").
		Where(sq.Lt{"expires_at": toMicros(nowFunc())}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.s.exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *sessionRepo) CreateToken(ctx context.Context, t *metadata.Token) (*metadata.Token, error) {
	now := toMicros(nowFunc())

	q, args, err := r.s.conn.builder().
		Insert("tokens").
		Columns("user_id", "token_hash", "name", "created_at").
		Values(t.UserID, t.TokenHash, t.Name, now).
		Suffix(returningIDSuffix(r.s.conn.Backend)).
		ToSql()
	if err != nil {
		return nil, err
	}

	id, err := r.s.insertReturningID(ctx, q, args)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict(apperr.EntityToken, "EntityConflict", "token already exists")
		}

		return nil, apperr.WrapInternal(err, "ServerError", "failed to create token")
	}

	t.ID = id
	t.CreatedAt = fromMicros(now)

	return t, nil
}

func (r *sessionRepo) FindTokenByHash(ctx context.Context, tokenHash string) (*metadata.Token, error) {
	q, args, err := r.s.conn.builder().
		Select("id", "user_id", "token_hash", "name", "last_used", "created_at").
		From("tokens").Where(sq.Eq{"token_hash": tokenHash}).ToSql()
	if err != nil {
		return nil, err
	}

	var t metadata.Token

	var lastUsed sql.NullInt64

	var createdAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &lastUsed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewUnauthorized("Unauthorized", "invalid token")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load token")
	}

	t.CreatedAt = fromMicros(createdAt)
	if lastUsed.Valid {
		t.LastUsed = fromMicrosPtr(&lastUsed.Int64)
	}

	return &t, nil
}

func (r *sessionRepo) ListTokens(ctx context.Context, userID int64) ([]metadata.Token, error) {
	q, args, err := r.s.conn.builder().
		Select("id", "user_id", "token_hash", "name", "last_used", "created_at").
		From("tokens").Where(sq.Eq{"user_id": userID}).OrderBy("id DESC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metadata.Token

	for rows.Next() {
		var t metadata.Token

		var lastUsed sql.NullInt64

		var createdAt int64

		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &lastUsed, &createdAt); err != nil {
			return nil, err
		}

		t.CreatedAt = fromMicros(createdAt)
		if lastUsed.Valid {
			t.LastUsed = fromMicrosPtr(&lastUsed.Int64)
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

func (r *sessionRepo) DeleteToken(ctx context.Context, id int64) error {
	q, args, err := r.s.conn.builder().Delete("tokens").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *sessionRepo) TouchToken(ctx context.Context, id int64) error {
	q, args, err := r.s.conn.builder().
		Update("tokens").
		Set("last_used", toMicros(nowFunc())).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}
