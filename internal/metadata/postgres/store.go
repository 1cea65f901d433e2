package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting every repository
// below work unchanged whether it runs against the pool or inside Store.WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements metadata.Store over a Connection.
type Store struct {
	conn   *Connection
	exec   execer
	logger logging.Logger
}

// NewStore wires a metadata.Store backed by conn.
func NewStore(conn *Connection, logger logging.Logger) *Store {
	return &Store{conn: conn, exec: conn.DB, logger: logger}
}

func (s *Store) Users() metadata.UserRepository                 { return &userRepo{s} }
func (s *Store) Sessions() metadata.SessionRepository            { return &sessionRepo{s} }
func (s *Store) Invitations() metadata.InvitationRepository      { return &invitationRepo{s} }
func (s *Store) Repositories() metadata.RepositoryRepository     { return &repositoryRepo{s} }
func (s *Store) Files() metadata.FileRepository                  { return &fileRepo{s} }
func (s *Store) Commits() metadata.CommitRepository              { return &commitRepo{s} }
func (s *Store) LFS() metadata.LFSRepository                     { return &lfsRepo{s} }
func (s *Store) Staging() metadata.StagingRepository             { return &stagingRepo{s} }
func (s *Store) Fallback() metadata.FallbackRepository           { return &fallbackRepo{s} }
func (s *Store) Confirmations() metadata.ConfirmationRepository  { return &confirmationRepo{s} }
func (s *Store) Stats() metadata.StatsRepository                 { return &statsRepo{s} }

// WithTx runs fn against a Store bound to a single transaction, committing
// when fn returns nil and rolling back otherwise — mirrors the
// validate-then-persist-in-one-transaction shape of the teacher's
// command/create-account.go, generalized to an arbitrary callback instead
// of one fixed entity write.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	tx, err := s.conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	txStore := &Store{conn: s.conn, exec: tx, logger: s.logger}

	if err := fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Errorf("postgres: rollback failed: %s", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}

	return nil
}
