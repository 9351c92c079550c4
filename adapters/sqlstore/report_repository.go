// Package sqlstore persists evaluation reports in Postgres or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal/errors"
	"dqmon/ports"

	"github.com/jmoiron/sqlx"
)

// DefaultListLimit caps List when no positive limit is given
const DefaultListLimit = 20

// reportRepository implements the ReportRepository interface
type reportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository. The schema is created
// by the migration runner.
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &reportRepository{db: db}
}

type reportRow struct {
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	GeneratedAt time.Time `db:"generated_at"`
	Fingerprint string    `db:"fingerprint"`
	Report      []byte    `db:"report"`
}

// Save inserts the report and one row per finding in a single transaction
func (r *reportRepository) Save(ctx context.Context, record *quality.ReportRecord) error {
	if record == nil || record.Report == nil {
		return errors.InvalidInput("report record is empty")
	}
	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO quality_reports (
		id, source, generated_at, fingerprint, has_issues, finding_count, report
	) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		record.ID.String(), record.Source, record.GeneratedAt.Time().UTC(), record.Fingerprint.String(),
		record.HasIssues(), record.Report.Len(), string(reportJSON),
	)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to insert report")
	}

	insertFinding := tx.Rebind(`INSERT INTO quality_findings (
		report_id, position, kind, message, count, row_indices, error
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, f := range record.Report.Findings {
		var rows any
		if len(f.RowIndices) > 0 {
			data, err := json.Marshal(f.RowIndices)
			if err != nil {
				return fmt.Errorf("failed to marshal row indices: %w", err)
			}
			rows = string(data)
		}
		var findingErr any
		if f.Error != "" {
			findingErr = f.Error
		}
		if _, err := tx.ExecContext(ctx, insertFinding,
			record.ID.String(), i, string(f.Kind), f.Message, f.Count, rows, findingErr,
		); err != nil {
			return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to insert finding")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to commit report")
	}
	return nil
}

// Latest returns the most recently generated report
func (r *reportRepository) Latest(ctx context.Context) (*quality.ReportRecord, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT id, source, generated_at, fingerprint, report
		FROM quality_reports ORDER BY generated_at DESC, id DESC LIMIT 1`)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrReportNotFound
		}
		return nil, errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to get latest report")
	}
	return row.toRecord()
}

// List returns up to limit reports, newest first
func (r *reportRepository) List(ctx context.Context, limit int) ([]*quality.ReportRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []reportRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, source, generated_at, fingerprint, report
		FROM quality_reports ORDER BY generated_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDatabaseError, "failed to list reports")
	}

	out := make([]*quality.ReportRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (row reportRow) toRecord() (*quality.ReportRecord, error) {
	var report quality.Report
	if err := json.Unmarshal(row.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", row.ID, err)
	}
	if report.Findings == nil {
		report.Findings = []quality.Finding{}
	}
	return &quality.ReportRecord{
		ID:          core.ReportID(row.ID),
		Source:      row.Source,
		GeneratedAt: core.NewTimestamp(row.GeneratedAt.UTC()),
		Fingerprint: core.Hash(row.Fingerprint),
		Report:      &report,
	}, nil
}
