package postgres

import sq "github.com/Masterminds/squirrel"

// builder returns a squirrel StatementBuilder using the placeholder format
// c's backend expects ($1,$2,... for Postgres; ?,?,... for SQLite) — the
// same PlaceholderFormat(sqrl.Dollar) idea the teacher applies per-query in
// organization.postgresql.go, hoisted once per Connection instead of
// repeated at every call site.
func (c *Connection) builder() sq.StatementBuilderType {
	if c.Backend == BackendPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
