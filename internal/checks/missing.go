package checks

import (
	"fmt"

	"dqmon/domain/quality"
	"dqmon/internal"
)

// MissingResult holds per-column null counts and their sum
type MissingResult struct {
	PerColumn map[string]int
	Total     int
	Rows      []int // rows holding at least one null
}

// CheckMissing counts null cells per column
func CheckMissing(ds *quality.Dataset) MissingResult {
	res := MissingResult{PerColumn: make(map[string]int)}
	cols := ds.Columns()
	for _, col := range cols {
		res.PerColumn[col] = 0
	}
	for i := 0; i < ds.Len(); i++ {
		rowHasNull := false
		for _, col := range cols {
			if ds.Value(i, col).IsNull() {
				res.PerColumn[col]++
				res.Total++
				rowHasNull = true
			}
		}
		if rowHasNull {
			res.Rows = append(res.Rows, i)
		}
	}
	return res
}

// MissingCheck emits a MISSING finding when nulls exceed the configured limit
type MissingCheck struct {
	log *internal.Logger
}

// NewMissingCheck creates the missing-values check
func NewMissingCheck(log *internal.Logger) *MissingCheck {
	return &MissingCheck{log: log}
}

func (c *MissingCheck) Name() string              { return "missing_values" }
func (c *MissingCheck) Kind() quality.FindingKind { return quality.KindMissing }

// Run compares the total null count against MissingValueLimit
func (c *MissingCheck) Run(ds *quality.Dataset, cfg quality.ThresholdConfig) ([]quality.Finding, error) {
	if cfg.MissingValueLimit < 0 {
		return nil, fmt.Errorf("missing_value_limit %d < 0", cfg.MissingValueLimit)
	}

	res := CheckMissing(ds)
	if res.Total <= cfg.MissingValueLimit {
		return nil, nil
	}

	affected := make(map[string]int)
	for col, n := range res.PerColumn {
		if n > 0 {
			affected[col] = n
		}
	}
	c.log.Warn("Missing values: %v", affected)

	f := quality.NewFinding(quality.KindMissing,
		fmt.Sprintf("Missing Values Exceed Threshold: %d", res.Total),
		res.Total, res.Rows)
	return []quality.Finding{f.WithDetails(map[string]any{
		"per_column": affected,
		"limit":      cfg.MissingValueLimit,
	})}, nil
}
