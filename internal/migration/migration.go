package migration

import (
	"context"

	"dqmon/internal"
	"dqmon/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for report history
type MigrationRunner struct {
	version string
	log     *internal.Logger
}

var _ Migrator = (*MigrationRunner)(nil)

// NewRunner creates a new migration runner
func NewRunner(log *internal.Logger) *MigrationRunner {
	if log == nil {
		log = internal.Nop()
	}
	return &MigrationRunner{
		version: "1.0.0",
		log:     log,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Postgres and
// SQLite share the statements except for column types.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	d := dialectFor(db.DriverName())

	if err := r.createReportsTable(ctx, db, d); err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to create quality_reports table")
	}

	if err := r.createFindingsTable(ctx, db, d); err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to create quality_findings table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to create indexes")
	}

	r.log.Info("Migrations %s applied (%s)", r.version, db.DriverName())
	return nil
}

type dialect struct {
	timestamp string
	json      string
	boolean   string
}

func dialectFor(driver string) dialect {
	if driver == "postgres" {
		return dialect{timestamp: "TIMESTAMP WITH TIME ZONE", json: "JSONB", boolean: "BOOLEAN"}
	}
	return dialect{timestamp: "TIMESTAMP", json: "TEXT", boolean: "BOOLEAN"}
}

func (r *MigrationRunner) createReportsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quality_reports (
			id VARCHAR(36) PRIMARY KEY,
			source VARCHAR(255) NOT NULL,
			generated_at `+d.timestamp+` NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			has_issues `+d.boolean+` NOT NULL DEFAULT false,
			finding_count INTEGER NOT NULL DEFAULT 0,
			report `+d.json+` NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createFindingsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quality_findings (
			report_id VARCHAR(36) NOT NULL REFERENCES quality_reports(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			row_indices `+d.json+`,
			error TEXT,
			PRIMARY KEY (report_id, position)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON quality_reports(generated_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON quality_reports(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_findings_kind ON quality_findings(kind)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.log.Warn("failed to create index: %v", err)
		}
	}

	return nil
}
