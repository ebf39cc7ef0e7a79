package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Open creates, initializes and migrates a store in one step.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init opens the database, creating its directory, and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		s.path, s.cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers from concurrent executions
	// and keeps an in-memory database alive across statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

const runColumns = `id, work_dir, status, started_at, completed_at, duration_ms,
	identifiers, duplicates, satisfied, pending, created, succeeded, failed,
	archive, published_to, error`

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.WorkDir,
		run.Status,
		run.StartedAt.UTC(),
		utcPtr(run.CompletedAt),
		run.Duration.Milliseconds(),
		run.Identifiers,
		run.Duplicates,
		run.Satisfied,
		run.Pending,
		run.Created,
		run.Succeeded,
		run.Failed,
		run.Archive,
		run.PublishedTo,
		run.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// FinishRun stores the final state of a run created earlier.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE runs
		SET status = ?, completed_at = ?, duration_ms = ?, identifiers = ?,
			duplicates = ?, satisfied = ?, pending = ?, created = ?,
			succeeded = ?, failed = ?, archive = ?, published_to = ?, error = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		run.Status,
		utcPtr(run.CompletedAt),
		run.Duration.Milliseconds(),
		run.Identifiers,
		run.Duplicates,
		run.Satisfied,
		run.Pending,
		run.Created,
		run.Succeeded,
		run.Failed,
		run.Archive,
		run.PublishedTo,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs with pagination, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRunsBefore prunes runs started before the cutoff together with
// their executions.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

const executionColumns = `id, run_id, identifier, trigger_name, status, output,
	started_at, completed_at, duration_ms, error`

// CreateExecution records one per-identifier execution
func (s *SQLiteStore) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO executions (
			run_id, identifier, trigger_name, status, output,
			started_at, completed_at, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		exec.RunID,
		exec.Identifier,
		exec.Trigger,
		exec.Status,
		exec.Output,
		exec.StartedAt.UTC(),
		exec.CompletedAt.UTC(),
		exec.Duration.Milliseconds(),
		exec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get execution id: %w", err)
	}
	exec.ID = id

	return nil
}

// ListExecutionsByRun lists the executions of a run in insertion order
func (s *SQLiteStore) ListExecutionsByRun(ctx context.Context, runID string) ([]*Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE run_id = ?
		ORDER BY id ASC
	`
	return s.queryExecutions(ctx, query, runID)
}

// ListExecutionsByIdentifier lists the most recent executions of an identifier
func (s *SQLiteStore) ListExecutionsByIdentifier(ctx context.Context, identifier string, limit int) ([]*Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE identifier = ?
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryExecutions(ctx, query, identifier, limit)
}

func (s *SQLiteStore) queryExecutions(ctx context.Context, query string, args ...interface{}) ([]*Execution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	execs := []*Execution{}
	for rows.Next() {
		exec := &Execution{}
		var durationMS int64
		err := rows.Scan(
			&exec.ID,
			&exec.RunID,
			&exec.Identifier,
			&exec.Trigger,
			&exec.Status,
			&exec.Output,
			&exec.StartedAt,
			&exec.CompletedAt,
			&durationMS,
			&exec.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.Duration = time.Duration(durationMS) * time.Millisecond
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return execs, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var durationMS int64
	err := row.Scan(
		&run.ID,
		&run.WorkDir,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&durationMS,
		&run.Identifiers,
		&run.Duplicates,
		&run.Satisfied,
		&run.Pending,
		&run.Created,
		&run.Succeeded,
		&run.Failed,
		&run.Archive,
		&run.PublishedTo,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ Store = (*SQLiteStore)(nil)
