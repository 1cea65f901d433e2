package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

type confirmationRepo struct{ s *Store }

func (r *confirmationRepo) Create(ctx context.Context, c *metadata.ConfirmationToken) error {
	data, err := json.Marshal(c.ActionData)
	if err != nil {
		return apperr.NewValidation("BadRequest", "invalid confirmation action data")
	}

	q, args, err := r.s.conn.builder().
		Insert("confirmation_tokens").
		Columns("token", "action_type", "action_data", "created_at", "expires_at").
		Values(c.Token, c.ActionType, string(data), toMicros(nowFunc()), toMicros(c.ExpiresAt)).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

// Consume reads and then deletes the confirmation token. Only the caller
// whose delete removes the row gets the token back, so a two-step
// dangerous operation token is single-use.
func (r *confirmationRepo) Consume(ctx context.Context, token string) (*metadata.ConfirmationToken, error) {
	q, args, err := r.s.conn.builder().
		Select("token", "action_type", "action_data", "created_at", "expires_at").
		From("confirmation_tokens").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return nil, err
	}

	var c metadata.ConfirmationToken

	var data string

	var createdAt, expiresAt int64

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&c.Token, &c.ActionType, &data, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("", "", "confirmation token not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load confirmation token")
	}

	c.CreatedAt = fromMicros(createdAt)
	c.ExpiresAt = fromMicros(expiresAt)

	if err := json.Unmarshal([]byte(data), &c.ActionData); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "corrupt confirmation action data")
	}

	delQ, delArgs, err := r.s.conn.builder().Delete("confirmation_tokens").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return nil, err
	}

	res, err := r.s.exec.ExecContext(ctx, delQ, delArgs...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to consume confirmation token")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.NewNotFound("", "", "confirmation token not found")
	}

	if nowFunc().After(c.ExpiresAt) {
		return nil, apperr.NewUnprocessable("BadRequest", "confirmation token expired")
	}

	return &c, nil
}
