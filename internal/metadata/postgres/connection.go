// Package postgres implements metadata.Store over database/sql, against
// either Postgres or SQLite depending on DB_BACKEND — generalized from the
// teacher's common/mpostgres.PostgresConnection, which only ever dials a
// Postgres primary/replica pair. This spec's config names a single
// DATABASE_URL (§6), so the primary/replica fan-out is dropped (see
// DESIGN.md) in favor of one *sql.DB plus a backend-selected migration
// driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kohakuhub/hub/internal/logging"
)

// Backend identifies which SQL dialect Connection speaks.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// Connection is a singleton-style database handle, mirroring the shape of
// the teacher's PostgresConnection but parameterized over backend.
type Connection struct {
	Backend   Backend
	DSN       string
	DB        *sql.DB
	Connected bool
	Logger    logging.Logger
}

// Connect opens the database, runs pending migrations, and pings.
func (c *Connection) Connect(ctx context.Context) error {
	driverName := "pgx"
	if c.Backend == BackendSQLite {
		driverName = "sqlite"
	}

	db, err := sql.Open(driverName, c.DSN)
	if err != nil {
		return fmt.Errorf("postgres: open %s: %w", driverName, err)
	}

	if err := c.migrate(db); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}

	c.DB = db
	c.Connected = true

	c.Logger.Infof("metadata store connected (backend=%s)", c.Backend)

	return nil
}

func (c *Connection) migrate(db *sql.DB) error {
	src, err := iofs.New(MigrationsFS, "migrations/"+string(c.Backend))
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	var dbDriver interface {
		Close() error
	}

	var m *migrate.Migrate

	switch c.Backend {
	case BackendPostgres:
		drv, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("postgres migration driver: %w", err)
		}

		dbDriver = drv

		m, err = migrate.NewWithInstance("iofs", src, "pgx", drv)
		if err != nil {
			return fmt.Errorf("new migrate instance: %w", err)
		}
	default:
		drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("sqlite migration driver: %w", err)
		}

		dbDriver = drv

		m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return fmt.Errorf("new migrate instance: %w", err)
		}
	}

	defer dbDriver.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// GetDB returns the underlying *sql.DB, connecting lazily if necessary.
func (c *Connection) GetDB(ctx context.Context) (*sql.DB, error) {
	if c.DB == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.DB, nil
}

// Placeholder reports which squirrel placeholder format this backend uses:
// Postgres needs $N, SQLite accepts plain "?".
func (c *Connection) Placeholder() sqPlaceholder {
	if c.Backend == BackendPostgres {
		return dollarPlaceholder
	}

	return questionPlaceholder
}

type sqPlaceholder int

const (
	questionPlaceholder sqPlaceholder = iota
	dollarPlaceholder
)
