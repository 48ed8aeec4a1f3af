// Package postgres provides PostgreSQL implementation of the store interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/narvanalabs/envkeep/internal/store"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db           *sql.DB
	logger       *slog.Logger
	applications *ApplicationStore
	memberships  *MembershipStore
	environments *EnvironmentStore
	secrets      *SecretStore
	variables    *VariableStore
}

var _ store.Store = (*PostgresStore)(nil)

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// AutoMigrate applies the schema on startup.
	AutoMigrate bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		AutoMigrate:     true,
	}
}

// NewPostgresStore creates a new PostgreSQL store with the given configuration.
func NewPostgresStore(cfg *Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("connected to PostgreSQL database")
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an open database handle. The schema is assumed to exist.
func NewWithDB(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:           db,
		logger:       logger,
		applications: &ApplicationStore{db: db, logger: logger},
		memberships:  &MembershipStore{db: db, logger: logger},
		environments: &EnvironmentStore{db: db, logger: logger},
		secrets:      &SecretStore{db: db, logger: logger},
		variables:    &VariableStore{db: db, logger: logger},
	}
}

// Applications returns the ApplicationStore.
func (s *PostgresStore) Applications() store.ApplicationStore {
	return s.applications
}

// Memberships returns the MembershipStore.
func (s *PostgresStore) Memberships() store.MembershipStore {
	return s.memberships
}

// Environments returns the EnvironmentStore.
func (s *PostgresStore) Environments() store.EnvironmentStore {
	return s.environments
}

// Secrets returns the SecretStore.
func (s *PostgresStore) Secrets() store.SecretStore {
	return s.secrets
}

// Variables returns the VariableStore.
func (s *PostgresStore) Variables() store.VariableStore {
	return s.variables
}

// WithTx executes the given function within a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &txStore{
		tx:           tx,
		logger:       s.logger,
		applications: &ApplicationStore{tx: tx, logger: s.logger},
		memberships:  &MembershipStore{tx: tx, logger: s.logger},
		environments: &EnvironmentStore{tx: tx, logger: s.logger},
		secrets:      &SecretStore{tx: tx, logger: s.logger},
		variables:    &VariableStore{tx: tx, logger: s.logger},
	}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// txStore wraps a transaction and implements the Store interface.
type txStore struct {
	tx           *sql.Tx
	logger       *slog.Logger
	applications *ApplicationStore
	memberships  *MembershipStore
	environments *EnvironmentStore
	secrets      *SecretStore
	variables    *VariableStore
}

func (s *txStore) Applications() store.ApplicationStore { return s.applications }
func (s *txStore) Memberships() store.MembershipStore   { return s.memberships }
func (s *txStore) Environments() store.EnvironmentStore { return s.environments }
func (s *txStore) Secrets() store.SecretStore           { return s.secrets }
func (s *txStore) Variables() store.VariableStore       { return s.variables }

func (s *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	// Already in a transaction, just execute the function
	return fn(s)
}

func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txStore) Close() error {
	// No-op for transaction store
	return nil
}

// queryable is an interface that both *sql.DB and *sql.Tx implement.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
