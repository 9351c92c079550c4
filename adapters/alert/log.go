package alert

import (
	"context"

	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/ports"
)

// LogSender writes alerts to the log. It stands in when no channel is configured.
type LogSender struct {
	log *internal.Logger
}

var _ ports.AlertSender = (*LogSender)(nil)

// NewLogSender creates a log sender
func NewLogSender(log *internal.Logger) *LogSender {
	if log == nil {
		log = internal.Nop()
	}
	return &LogSender{log: log}
}

func (l *LogSender) Channel() string { return "log" }

func (l *LogSender) Send(_ context.Context, rec *quality.ReportRecord) error {
	l.log.Warn("%s\n%s", Subject(rec), PlainBody(rec))
	return nil
}
