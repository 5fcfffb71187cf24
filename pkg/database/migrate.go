package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrator applies the embedded, timestamp-ordered schema migrations. Each
// migration is executed inside its own transaction: it is either fully
// applied or not applied at all. A failure aborts the run — there is no
// automatic retry; an operator resolves the condition and re-runs.
//
// Migrations must run to completion before the service accepts traffic.
// That ordering is an operational precondition enforced by the deployment
// step (cmd/migrate, or the service entrypoint which migrates before
// wiring repositories), not by the store itself.
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMigrator opens a database/sql connection over the pgx stdlib driver
// (goose drives migrations through database/sql) and registers the given
// migration filesystem.
func NewMigrator(dsn string, fsys fs.FS, logger *slog.Logger) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}

	goose.SetBaseFS(fsys)
	goose.SetLogger(&gooseLogger{logger: logger})
	if err := goose.SetDialect("pgx"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}

	return &Migrator{db: db, logger: logger}, nil
}

// Up applies all pending migrations in chronological order.
func (m *Migrator) Up(ctx context.Context) error {
	before, err := m.Version(ctx)
	if err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, err := m.Version(ctx)
	if err != nil {
		return err
	}

	m.logger.Info("migrations applied",
		slog.Int64("from_version", before),
		slog.Int64("to_version", after),
	)
	return nil
}

// UpTo applies pending migrations up to and including the given version.
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	if err := goose.UpToContext(ctx, m.db, ".", version); err != nil {
		return fmt.Errorf("apply migrations up to %d: %w", version, err)
	}
	return nil
}

// Down rolls back the most recently applied migration. Destructive
// migrations (see the reset-token uniqueness narrowing) restore the previous
// shape but not the cleared data.
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// Status prints the applied/pending state of every known migration.
func (m *Migrator) Status(ctx context.Context) error {
	if err := goose.StatusContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Version returns the currently applied schema version (0 for an empty store).
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Close releases the migration connection.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// gooseLogger adapts slog to the goose.Logger interface.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
