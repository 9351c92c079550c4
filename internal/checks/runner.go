package checks

import (
	"fmt"
	"time"

	"dqmon/adapters/stats/isolation"
	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal"
)

// Observer receives per-check timings and outcomes. Metrics collectors
// implement it; it may be nil.
type Observer interface {
	ObserveCheck(name string, d time.Duration, findings int, failed bool)
}

// Runner executes checks in order and isolates each one: an error or panic
// inside a check becomes a finding and the next check still runs.
type Runner struct {
	log      *internal.Logger
	checks   []Check
	observer Observer
}

// NewRunner creates a runner over the given checks, run in argument order
func NewRunner(log *internal.Logger, checks ...Check) *Runner {
	if log == nil {
		log = internal.Nop()
	}
	return &Runner{log: log, checks: checks}
}

// DefaultChecks returns missing values, duplicates, anomalies and custom rules, in that order
func DefaultChecks(log *internal.Logger, forest *isolation.Forest) []Check {
	if log == nil {
		log = internal.Nop()
	}
	return []Check{
		NewMissingCheck(log),
		NewDuplicateCheck(log),
		NewAnomalyCheck(log, forest),
		NewCustomRuleCheck(log),
	}
}

// WithObserver attaches an observer and returns the runner
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// Checks returns the checks in execution order
func (r *Runner) Checks() []Check {
	return r.checks
}

// Run evaluates every check against the dataset and collects their findings
func (r *Runner) Run(ds *quality.Dataset, cfg quality.ThresholdConfig) *quality.Report {
	report := quality.NewReport()
	for _, c := range r.checks {
		start := time.Now()
		findings, err := r.runOne(c, ds, cfg)
		failed := err != nil
		if failed {
			r.log.Error("Check %s failed: %v", c.Name(), err)
			findings = []quality.Finding{quality.NewErrorFinding(c.Kind(),
				fmt.Sprintf("Check Error (%s): %v", c.Name(), err),
				core.NewCheckError(c.Name(), err))}
		}
		report.Add(findings...)
		if r.observer != nil {
			r.observer.ObserveCheck(c.Name(), time.Since(start), len(findings), failed)
		}
	}
	return report
}

func (r *Runner) runOne(c Check, ds *quality.Dataset, cfg quality.ThresholdConfig) (findings []quality.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			findings = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	r.log.Debug("Running check %s", c.Name())
	return c.Run(ds, cfg)
}
