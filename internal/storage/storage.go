package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/logging"
	"github.com/Tiliavir/worklog/internal/metrics"
)

// SchemaVersion is the only schema version this build understands.
const SchemaVersion = 1

//go:embed migrations/*.sql
var migrationsFS embed.FS

// BaseDir returns the root data directory (~/.wlog).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".wlog"), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// Store is the process-wide handle to the local worklog database. It is
// constructed unopened; Initialize must succeed before any other call.
type Store struct {
	path    string
	db      *sqlx.DB
	log     *zap.Logger
	metrics *metrics.Recorder
}

// New returns an unopened store for the SQLite file at path.
func New(path string, log *zap.Logger, rec *metrics.Recorder) *Store {
	return &Store{
		path:    path,
		log:     logging.OrNop(log).Named("storage"),
		metrics: rec,
	}
}

// Initialize opens the database, creating the file and its directory if
// absent, and applies the schema. Calling it on an open store is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	start := time.Now()

	path, err := ExpandPath(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ErrStorageUnavailable, err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=off")
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrStorageUnavailable, path, err)
	}
	// One connection serializes every statement and transaction.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: opening %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	s.db = db
	s.metrics.Observe("initialize", "", start, nil)
	s.log.Debug("store initialized", zap.String("path", path))
	return nil
}

// applySchema brings the database to SchemaVersion.
func applySchema(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}
	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty || version != SchemaVersion {
		return fmt.Errorf("schema version %d (dirty=%v), want %d", version, dirty, SchemaVersion)
	}
	return nil
}

// Close releases the database. Subsequent operations fail with
// ErrNotInitialized.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

func (s *Store) conn() (sqlx.ExtContext, *Store, error) {
	if s.db == nil {
		return nil, s, ErrNotInitialized
	}
	return s.db, s, nil
}

// Tx is an open transaction. It is a Handle, so every collection operation
// can run inside it.
type Tx struct {
	tx    *sqlx.Tx
	store *Store
}

func (t *Tx) conn() (sqlx.ExtContext, *Store, error) {
	return t.tx, t.store, nil
}

// WithTx runs fn inside a single transaction. The transaction is rolled back
// if fn returns an error or panics and committed otherwise.
//
// While fn runs the store's only connection is held by the transaction, so
// fn must use tx and never the Store itself.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if s.db == nil {
		return &StorageError{Op: "begin", Err: ErrNotInitialized}
	}
	start := time.Now()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.metrics.Observe("begin", "", start, err)
		return &StorageError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, store: s}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.metrics.Observe("rollback", "", start, rbErr)
			return &StorageError{Op: "rollback", Err: fmt.Errorf("%v (original error: %w)", rbErr, err)}
		}
		s.metrics.Observe("rollback", "", start, nil)
		s.log.Debug("transaction rolled back", zap.Error(err))
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		s.metrics.Observe("commit", "", start, err)
		return &StorageError{Op: "commit", Err: err}
	}
	s.metrics.Observe("commit", "", start, nil)
	return nil
}
