package postgres

import "embed"

// MigrationsFS embeds both the postgres/ and sqlite/ migration trees so the
// binary ships without a separate migrations directory on disk — the same
// embed-and-ship shape the teacher gets "for free" from its migrations
// living under components/ledger/migrations relative to the working
// directory; embedding makes it work regardless of cwd.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationsFS embed.FS
