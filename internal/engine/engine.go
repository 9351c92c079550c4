// Package engine is the single entry point that turns a dataset snapshot, or
// the error that prevented loading it, into a quality report.
package engine

import (
	"fmt"

	"dqmon/adapters/stats/isolation"
	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/internal/checks"
)

// Engine evaluates datasets. It holds no per-cycle state, so repeated
// evaluation of the same inputs yields the same report.
type Engine struct {
	log    *internal.Logger
	runner *checks.Runner
}

// New creates an engine running the default checks with the given forest
func New(log *internal.Logger, forest *isolation.Forest) *Engine {
	if log == nil {
		log = internal.Nop()
	}
	return NewWithRunner(log, checks.NewRunner(log, checks.DefaultChecks(log, forest)...))
}

// NewWithRunner creates an engine around a custom runner
func NewWithRunner(log *internal.Logger, runner *checks.Runner) *Engine {
	if log == nil {
		log = internal.Nop()
	}
	return &Engine{log: log, runner: runner}
}

// Runner returns the check runner
func (e *Engine) Runner() *checks.Runner {
	return e.runner
}

// Evaluate runs all checks against ds. If loadErr is set or ds is nil no check
// runs and the report holds a single LOAD_ERROR finding.
func (e *Engine) Evaluate(ds *quality.Dataset, loadErr error, cfg quality.ThresholdConfig) *quality.Report {
	if loadErr != nil || ds == nil {
		if loadErr == nil {
			loadErr = fmt.Errorf("no dataset")
		}
		e.log.Error("Data load failed: %v", loadErr)
		report := quality.NewReport()
		report.Add(quality.NewErrorFinding(quality.KindLoadError,
			fmt.Sprintf("Data Load Error: %v", loadErr), loadErr))
		return report
	}

	e.log.Debug("Evaluating %d rows x %d columns", ds.Len(), len(ds.Columns()))
	report := e.runner.Run(ds, cfg)
	if report.HasIssues() {
		e.log.Info("Evaluation found %d issues", report.Len())
	} else {
		e.log.Info("Evaluation found no issues")
	}
	return report
}
