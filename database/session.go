// Package database manages the single connection session the query layer
// runs on.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Runner is satisfied by both *sql.DB and *sql.Tx.
type Runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is one logical database session with at most one open
// transaction. It is not meant for concurrent use beyond what the mutex
// protects: callers serialise operations or use one session per worker.
type Session struct {
	mu       sync.Mutex
	cfg      Config
	provider string
	driver   string
	dsn      string
	db       *sql.DB
	tx       *sql.Tx
	ownsDB   bool
}

// DriverName maps provider names to Go database driver names
func DriverName(provider string) string {
	p, _ := sqlgen.NormalizeProvider(provider)
	switch p {
	case sqlgen.Postgres:
		return "postgres"
	case sqlgen.MySQL:
		return "mysql"
	case sqlgen.SQLite:
		return "sqlite3"
	default:
		return ""
	}
}

// Open creates a session and connects it.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	provider, ok := sqlgen.NormalizeProvider(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		provider: provider,
		driver:   DriverName(provider),
		dsn:      dsn,
		ownsDB:   true,
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSession wraps an existing connection pool. Close does not close db.
func NewSession(db *sql.DB, provider string) (*Session, error) {
	p, ok := sqlgen.NormalizeProvider(provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return &Session{
		cfg:      Config{Provider: p},
		provider: p,
		driver:   DriverName(p),
		db:       db,
	}, nil
}

// Connect opens the pool if needed and pings it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.db == nil {
		db, err := sql.Open(s.driver, s.dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		s.configurePool(db)
		s.db = db
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.connectTimeout())
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	debug.Debug("database connected", "provider", s.provider)
	return nil
}

func (s *Session) configurePool(db *sql.DB) {
	if s.provider == sqlgen.SQLite {
		// one connection keeps in-memory databases alive and serialises writes
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	if s.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}
	if s.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	}
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}
}

// IsAlive pings the database.
func (s *Session) IsAlive(ctx context.Context) bool {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close rolls back any open transaction and closes the pool if the session
// opened it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx = nil
	}
	if s.db != nil && s.ownsDB {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}
	return errors.Join(errs...)
}

// Runner returns the open transaction, or the pool after making sure it is
// reachable.
func (s *Session) Runner(ctx context.Context) (Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return s.tx, nil
	}
	if s.db == nil {
		if !s.ownsDB {
			return nil, errors.New("database session is closed")
		}
		if err := s.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return s.db, nil
}

// Begin starts a transaction. Only one may be open at a time.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return errdefs.ErrTransactionInProgress
	}
	if s.db == nil {
		if err := s.connectLocked(ctx); err != nil {
			return &errdefs.TransactionError{Op: "begin", Cause: fmt.Errorf("%w: %w", errdefs.ErrTransactionBeginFailed, err)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errdefs.TransactionError{Op: "begin", Cause: fmt.Errorf("%w: %w", errdefs.ErrTransactionBeginFailed, err)}
	}
	s.tx = tx
	debug.Debug("transaction started", "provider", s.provider)
	return nil
}

// Commit commits the open transaction. When the commit fails a rollback is
// attempted, and a failed rollback is reported alongside the commit error.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return errdefs.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil

	if err := tx.Commit(); err != nil {
		txErr := &errdefs.TransactionError{Op: "commit", Cause: fmt.Errorf("%w: %w", errdefs.ErrTransactionCommitFailed, err)}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			txErr.RollbackErr = rbErr
		}
		return txErr
	}
	debug.Debug("transaction committed", "provider", s.provider)
	return nil
}

// Rollback rolls back the open transaction.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return errdefs.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil

	if err := tx.Rollback(); err != nil {
		return &errdefs.TransactionError{Op: "rollback", Cause: fmt.Errorf("%w: %w", errdefs.ErrTransactionRollbackFailed, err)}
	}
	debug.Debug("transaction rolled back", "provider", s.provider)
	return nil
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Provider returns the normalized provider name.
func (s *Session) Provider() string {
	return s.provider
}

// DriverName returns the database/sql driver name.
func (s *Session) DriverName() string {
	return s.driver
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config {
	return s.cfg
}

// DB returns the underlying database connection
func (s *Session) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}
