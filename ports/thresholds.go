package ports

import "dqmon/domain/quality"

// ThresholdProvider returns the thresholds for the next cycle. Implementations
// may re-read configuration on every call.
type ThresholdProvider interface {
	Thresholds() (quality.ThresholdConfig, error)
}
