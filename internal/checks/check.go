// Package checks implements the data-quality checks run against one dataset
// snapshot and the runner that isolates them from each other.
package checks

import (
	"dqmon/domain/quality"
)

// Check is one independent quality check
type Check interface {
	// Name identifies the check in logs and fault findings
	Name() string
	// Kind is the finding kind the check emits, also used for its fault findings
	Kind() quality.FindingKind
	// Run evaluates the dataset. Returning an error marks the whole check as failed.
	Run(ds *quality.Dataset, cfg quality.ThresholdConfig) ([]quality.Finding, error)
}
