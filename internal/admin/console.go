// Package admin implements the read-only SQL console named as an Open
// Question in spec §9: a free-form SELECT endpoint gated on both the
// process-wide admin secret (§4.C) and a connection that is verified,
// at boot, to be incapable of writes — the regex denylist below is a
// second layer, never the sole control. Grounded on
// components/consumer/internal/bootstrap/consumer.go's "fails to start
// rather than runs unsafely" posture, applied to a route instead of a
// consumer loop.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/auth"
)

// writeKeyword matches a statement containing any of the listed write,
// DDL or privilege keywords as a whole word — the denylist is defense
// in depth, not the primary control.
var writeKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|grant|revoke|create|vacuum|copy|call|exec)\b`)

// Console serves read-only SQL queries against a verified-readonly
// connection, for operators debugging data issues the typed API
// surface doesn't expose.
type Console struct {
	AdminSecret string
	ReadonlyDB  *sql.DB
}

// NewConsole verifies db is actually incapable of writes before
// returning a usable Console — spec §9's "refusing to start the admin
// route at all if the configured user cannot be verified as
// read-only". Returns an error if the check itself fails or if the
// connection turns out to be writable.
func NewConsole(ctx context.Context, adminSecret string, db *sql.DB) (*Console, error) {
	readOnly, err := isReadOnlyConnection(ctx, db)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to verify admin console connection is read-only")
	}

	if !readOnly {
		return nil, errors.New("admin: configured DATABASE_URL_READONLY connection is not actually read-only")
	}

	return &Console{AdminSecret: adminSecret, ReadonlyDB: db}, nil
}

// isReadOnlyConnection checks Postgres's per-session read-only flag;
// SQLite callers pass a DSN opened in "mode=ro" and this check is
// skipped (no equivalent session flag exists), the DSN itself being
// the enforcement mechanism.
func isReadOnlyConnection(ctx context.Context, db *sql.DB) (bool, error) {
	if strings.Contains(strings.ToLower(fmt.Sprintf("%T", db.Driver())), "sqlite") {
		return true, nil // SQLite: no such setting, DSN-level ro mode is authoritative
	}

	var flag string

	if err := db.QueryRowContext(ctx, "SHOW default_transaction_read_only").Scan(&flag); err != nil {
		return false, err
	}

	return strings.EqualFold(flag, "on"), nil
}

// Row is one result row, column name to value.
type Row map[string]any

// Query runs a SELECT-only statement after checking providedSecret
// against c.AdminSecret in constant time and rejecting any statement
// the denylist flags.
func (c *Console) Query(ctx context.Context, providedSecret, sqlText string) ([]Row, error) {
	if !auth.CheckAdminSecret(c.AdminSecret, providedSecret) {
		return nil, apperr.NewUnauthorized("Unauthorized", "invalid admin secret")
	}

	trimmed := strings.TrimSpace(sqlText)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return nil, apperr.NewValidation("BadRequest", "only SELECT statements are permitted")
	}

	if writeKeyword.MatchString(trimmed) {
		return nil, apperr.NewValidation("BadRequest", "statement contains a disallowed keyword")
	}

	rows, err := c.ReadonlyDB.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "query failed")
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}

		out = append(out, row)
	}

	return out, rows.Err()
}
