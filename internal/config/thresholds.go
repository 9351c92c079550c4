package config

import (
	"sync"

	"dqmon/domain/quality"
	"dqmon/ports"
)

// FileThresholds re-reads the config file on every call so threshold edits
// apply to the next cycle. When a re-read fails the last good thresholds are
// returned together with the error.
type FileThresholds struct {
	path string

	mu   sync.Mutex
	last quality.ThresholdConfig
}

var _ ports.ThresholdProvider = (*FileThresholds)(nil)

// NewFileThresholds starts from the thresholds of an already loaded config
func NewFileThresholds(path string, initial *Config) *FileThresholds {
	return &FileThresholds{path: path, last: initial.ThresholdConfig()}
}

func (f *FileThresholds) Thresholds() (quality.ThresholdConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg, err := Load(f.path)
	if err != nil {
		return f.last, err
	}
	f.last = cfg.ThresholdConfig()
	return f.last, nil
}

// StaticThresholds always returns the same thresholds
type StaticThresholds quality.ThresholdConfig

func (s StaticThresholds) Thresholds() (quality.ThresholdConfig, error) {
	return quality.ThresholdConfig(s), nil
}
