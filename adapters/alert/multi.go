package alert

import (
	"context"
	stderrors "errors"

	"dqmon/domain/quality"
	"dqmon/ports"
)

// MultiSender fans a record out to every channel. One failing channel does
// not stop the others; their errors are joined.
type MultiSender struct {
	senders []ports.AlertSender
}

var _ ports.AlertSender = (*MultiSender)(nil)

// NewMultiSender creates a fan-out sender
func NewMultiSender(senders ...ports.AlertSender) *MultiSender {
	return &MultiSender{senders: senders}
}

func (m *MultiSender) Channel() string {
	name := ""
	for i, s := range m.senders {
		if i > 0 {
			name += "+"
		}
		name += s.Channel()
	}
	return name
}

// Senders returns the channels in delivery order
func (m *MultiSender) Senders() []ports.AlertSender {
	return m.senders
}

func (m *MultiSender) Send(ctx context.Context, rec *quality.ReportRecord) error {
	var errs []error
	for _, s := range m.senders {
		if err := s.Send(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
