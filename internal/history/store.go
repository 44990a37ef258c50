// Package history keeps a local ledger of pipeline runs in a SQLite
// database under the working directory. Every run lands here, including
// failed ones, so an operator can see what was deployed when and what
// broke.
package history

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Outcome values beyond the pipeline's own. A rollback is recorded as a
// run of its own so the ledger reflects what the service actually served.
const OutcomeRollback = "rollback"

// Run is one ledger entry.
type Run struct {
	ID          string    `db:"id"`
	Service     string    `db:"service"`
	Project     string    `db:"project"`
	Region      string    `db:"region"`
	Tag         string    `db:"tag"`
	Image       string    `db:"image"`
	Endpoint    string    `db:"endpoint"`
	Outcome     string    `db:"outcome"`
	FailedStage string    `db:"failed_stage"`
	DurationMS  int64     `db:"duration_ms"`
	CreatedAt   time.Time `db:"created_at"`
}

// Store is the ledger handle.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the ledger database at path and runs
// its migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one run. ID and CreatedAt are filled in when empty.
func (s *Store) Append(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, service, project, region, tag, image, endpoint, outcome, failed_stage, duration_ms, created_at)
		VALUES (:id, :service, :project, :region, :tag, :image, :endpoint, :outcome, :failed_stage, :duration_ms, :created_at)`,
		run)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	return run, nil
}

// List returns the most recent runs, newest first. An empty service
// matches every service.
func (s *Store) List(ctx context.Context, service string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		runs []Run
		err  error
	)
	if service == "" {
		err = s.db.SelectContext(ctx, &runs,
			`SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &runs,
			`SELECT * FROM runs WHERE service = ? ORDER BY created_at DESC, id LIMIT ?`, service, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
