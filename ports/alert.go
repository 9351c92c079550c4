package ports

import (
	"context"

	"dqmon/domain/quality"
)

// AlertSender delivers a report that has issues over one channel
type AlertSender interface {
	Send(ctx context.Context, record *quality.ReportRecord) error
	Channel() string
}
