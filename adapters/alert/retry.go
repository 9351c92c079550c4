package alert

import (
	"context"
	"time"

	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/internal/errors"
	"dqmon/ports"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryWait   = 2 * time.Second
)

// RetryConfig controls redelivery of a failed alert
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	RetryWait   time.Duration `json:"retry_wait" mapstructure:"retry_wait"`
}

// DefaultRetryConfig returns three attempts two seconds apart
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: DefaultMaxAttempts, RetryWait: DefaultRetryWait}
}

// RetryingSender retries a sender with a constant wait between attempts.
// Errors marked backoff.Permanent stop retrying at once.
type RetryingSender struct {
	next ports.AlertSender
	cfg  RetryConfig
	log  *internal.Logger
}

var _ ports.AlertSender = (*RetryingSender)(nil)

// WithRetry wraps next. Non-positive settings fall back to the defaults.
func WithRetry(next ports.AlertSender, cfg RetryConfig, log *internal.Logger) *RetryingSender {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	if log == nil {
		log = internal.Nop()
	}
	return &RetryingSender{next: next, cfg: cfg, log: log}
}

func (r *RetryingSender) Channel() string { return r.next.Channel() }

// Send delivers the record, returning a DELIVERY_ERROR once attempts run out
func (r *RetryingSender) Send(ctx context.Context, rec *quality.ReportRecord) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.cfg.RetryWait), uint64(r.cfg.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return r.next.Send(ctx, rec)
	}, policy, func(err error, wait time.Duration) {
		r.log.Warn("%s alert attempt %d/%d failed: %v; retrying in %s",
			r.Channel(), attempt, r.cfg.MaxAttempts, err, wait)
	})
	if err != nil {
		r.log.Error("Failed to send %s alert after %d attempts: %v", r.Channel(), attempt, err)
		return errors.DeliveryError(r.Channel(), err)
	}
	return nil
}
