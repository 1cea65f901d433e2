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

type invitationRepo struct{ s *Store }

func (r *invitationRepo) Create(ctx context.Context, inv *metadata.Invitation) (*metadata.Invitation, error) {
	params, err := json.Marshal(inv.Parameters)
	if err != nil {
		return nil, apperr.NewValidation("BadRequest", "invalid invitation parameters")
	}

	q, args, err := r.s.conn.builder().
		Insert("invitations").
		Columns("token", "action", "parameters", "created_by", "expires_at", "max_usage").
		Values(inv.Token, string(inv.Action), string(params), inv.CreatedBy, toMicros(inv.ExpiresAt), inv.MaxUsage).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict("", "EntityConflict", "invitation token already exists")
		}

		return nil, apperr.WrapInternal(err, "ServerError", "failed to create invitation")
	}

	return inv, nil
}

func (r *invitationRepo) FindByToken(ctx context.Context, token string) (*metadata.Invitation, error) {
	q, args, err := r.s.conn.builder().
		Select("token", "action", "parameters", "created_by", "expires_at",
			"max_usage", "usage_count", "used_at", "used_by").
		From("invitations").Where(sq.Eq{"token": token}).ToSql()
	if err != nil {
		return nil, err
	}

	var inv metadata.Invitation

	var action, params string

	var expiresAt int64

	var usedAt sql.NullInt64

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&inv.Token, &action, &params, &inv.CreatedBy,
		&expiresAt, &inv.MaxUsage, &inv.UsageCount, &usedAt, &inv.UsedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("", "", "invitation not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load invitation")
	}

	inv.Action = metadata.InvitationAction(action)
	inv.ExpiresAt = fromMicros(expiresAt)

	if usedAt.Valid {
		inv.UsedAt = fromMicrosPtr(&usedAt.Int64)
	}

	if err := json.Unmarshal([]byte(params), &inv.Parameters); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "corrupt invitation parameters")
	}

	return &inv, nil
}

func (r *invitationRepo) Redeem(ctx context.Context, token string, usedBy int64) error {
	q, args, err := r.s.conn.builder().
		Update("invitations").
		Set("usage_count", sq.Expr("usage_count + 1")).
		Set("used_at", toMicros(nowFunc())).
		Set("used_by", usedBy).
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}
