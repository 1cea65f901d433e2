package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// userRepo implements metadata.UserRepository, grounded on
// organization.postgresql.go's Create/Find/Update/Delete shape and wire-model
// conversion pattern.
type userRepo struct{ s *Store }

const usersColumns = "id, username, normalized_name, is_org, email, password_hash, " +
	"email_verified, is_active, private_quota_bytes, public_quota_bytes, " +
	"private_used_bytes, public_used_bytes, full_name, bio, avatar, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*metadata.User, error) {
	var u metadata.User

	var createdAt, updatedAt int64

	err := row.Scan(&u.ID, &u.Username, &u.NormalizedName, &u.IsOrg, &u.Email, &u.PasswordHash,
		&u.EmailVerified, &u.IsActive, &u.PrivateQuotaBytes, &u.PublicQuotaBytes,
		&u.PrivateUsedBytes, &u.PublicUsedBytes, &u.FullName, &u.Bio, &u.Avatar, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.CreatedAt = fromMicros(createdAt)
	u.UpdatedAt = fromMicros(updatedAt)

	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	now := toMicros(nowFunc())

	q, args, err := r.s.conn.builder().
		Insert("users").
		Columns("username", "normalized_name", "is_org", "email", "password_hash",
			"email_verified", "is_active", "private_quota_bytes", "public_quota_bytes",
			"full_name", "bio", "avatar", "created_at", "updated_at").
		Values(u.Username, u.NormalizedName, u.IsOrg, u.Email, u.PasswordHash,
			u.EmailVerified, u.IsActive, u.PrivateQuotaBytes, u.PublicQuotaBytes,
			u.FullName, u.Bio, u.Avatar, now, now).
		Suffix(returningIDSuffix(r.s.conn.Backend)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("metadata: build insert user: %w", err)
	}

	id, err := r.s.insertReturningID(ctx, q, args)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict(apperr.EntityUser, "EntityConflict", "username or email already exists")
		}

		return nil, apperr.WrapInternal(err, "ServerError", "failed to create user")
	}

	return r.FindByID(ctx, id)
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*metadata.User, error) {
	q, args, err := r.s.conn.builder().Select(usersColumns).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	u, err := scanUser(r.s.exec.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityUser, "", "user not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load user")
	}

	return u, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*metadata.User, error) {
	q, args, err := r.s.conn.builder().Select(usersColumns).From("users").Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *userRepo) FindByNormalizedName(ctx context.Context, normalized string) (*metadata.User, error) {
	q, args, err := r.s.conn.builder().Select(usersColumns).From("users").Where(sq.Eq{"normalized_name": normalized}).ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*metadata.User, error) {
	q, args, err := r.s.conn.builder().Select(usersColumns).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, q, args)
}

func (r *userRepo) findOne(ctx context.Context, q string, args []any) (*metadata.User, error) {
	u, err := scanUser(r.s.exec.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityUser, "", "user not found")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load user")
	}

	return u, nil
}

func (r *userRepo) Update(ctx context.Context, u *metadata.User) (*metadata.User, error) {
	q, args, err := r.s.conn.builder().
		Update("users").
		Set("email", u.Email).
		Set("password_hash", u.PasswordHash).
		Set("email_verified", u.EmailVerified).
		Set("is_active", u.IsActive).
		Set("private_quota_bytes", u.PrivateQuotaBytes).
		Set("public_quota_bytes", u.PublicQuotaBytes).
		Set("full_name", u.FullName).
		Set("bio", u.Bio).
		Set("avatar", u.Avatar).
		Set("updated_at", toMicros(nowFunc())).
		Where(sq.Eq{"id": u.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to update user")
	}

	return r.FindByID(ctx, u.ID)
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	q, args, err := r.s.conn.builder().Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to delete user")
	}

	return nil
}

func (r *userRepo) ApplyUsageDelta(ctx context.Context, id int64, privateDelta, publicDelta int64) error {
	q, args, err := r.s.conn.builder().
		Update("users").
		Set("private_used_bytes", sq.Expr("private_used_bytes + ?", privateDelta)).
		Set("public_used_bytes", sq.Expr("public_used_bytes + ?", publicDelta)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to apply usage delta")
	}

	return nil
}

func (r *userRepo) AddMember(ctx context.Context, orgID, userID int64, role metadata.OrgRole) error {
	q, args, err := r.s.conn.builder().
		Insert("user_organizations").
		Columns("user_id", "org_id", "role").
		Values(userID, orgID, string(role)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.s.exec.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return apperr.NewConflict(apperr.EntityOrg, "EntityConflict", "user is already a member")
		}

		return apperr.WrapInternal(err, "ServerError", "failed to add member")
	}

	return nil
}

func (r *userRepo) RemoveMember(ctx context.Context, orgID, userID int64) error {
	q, args, err := r.s.conn.builder().
		Delete("user_organizations").
		Where(sq.Eq{"org_id": orgID, "user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.s.exec.ExecContext(ctx, q, args...)

	return err
}

func (r *userRepo) Membership(ctx context.Context, orgID, userID int64) (*metadata.UserOrganization, error) {
	q, args, err := r.s.conn.builder().
		Select("user_id", "org_id", "role").
		From("user_organizations").
		Where(sq.Eq{"org_id": orgID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var m metadata.UserOrganization

	var role string

	err = r.s.exec.QueryRowContext(ctx, q, args...).Scan(&m.UserID, &m.OrgID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(apperr.EntityOrg, "", "not a member")
	}

	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load membership")
	}

	m.Role = metadata.OrgRole(role)

	return &m, nil
}

func (r *userRepo) ListMembers(ctx context.Context, orgID int64) ([]metadata.UserOrganization, error) {
	q, args, err := r.s.conn.builder().
		Select("user_id", "org_id", "role").
		From("user_organizations").
		Where(sq.Eq{"org_id": orgID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.s.exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to list members")
	}
	defer rows.Close()

	var out []metadata.UserOrganization

	for rows.Next() {
		var m metadata.UserOrganization

		var role string

		if err := rows.Scan(&m.UserID, &m.OrgID, &role); err != nil {
			return nil, err
		}

		m.Role = metadata.OrgRole(role)
		out = append(out, m)
	}

	return out, rows.Err()
}
