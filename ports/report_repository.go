package ports

import (
	"context"

	"dqmon/domain/quality"
)

// ReportRepository defines persistence operations for evaluation reports
type ReportRepository interface {
	Save(ctx context.Context, record *quality.ReportRecord) error
	Latest(ctx context.Context) (*quality.ReportRecord, error)
	List(ctx context.Context, limit int) ([]*quality.ReportRecord, error)
}
