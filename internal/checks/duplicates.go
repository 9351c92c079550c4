package checks

import (
	"fmt"

	"dqmon/domain/quality"
	"dqmon/internal"
)

// DuplicateResult holds the rows repeating an earlier row
type DuplicateResult struct {
	Count int
	Rows  []int
	// FirstSeen maps each duplicate row to the row it repeats
	FirstSeen map[int]int
}

// CheckDuplicates flags every row that is identical, cell for cell, to an
// earlier row. The first occurrence is not counted and null equals null.
func CheckDuplicates(ds *quality.Dataset) DuplicateResult {
	res := DuplicateResult{FirstSeen: make(map[int]int)}
	seen := make(map[string]int, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		key := ds.RowKey(i)
		if first, ok := seen[key]; ok {
			res.Count++
			res.Rows = append(res.Rows, i)
			res.FirstSeen[i] = first
			continue
		}
		seen[key] = i
	}
	return res
}

// DuplicateCheck emits a DUPLICATE finding when duplicates exceed the configured limit
type DuplicateCheck struct {
	log *internal.Logger
}

// NewDuplicateCheck creates the duplicate-rows check
func NewDuplicateCheck(log *internal.Logger) *DuplicateCheck {
	return &DuplicateCheck{log: log}
}

func (c *DuplicateCheck) Name() string              { return "duplicates" }
func (c *DuplicateCheck) Kind() quality.FindingKind { return quality.KindDuplicate }

// Run compares the duplicate count against DuplicateLimit
func (c *DuplicateCheck) Run(ds *quality.Dataset, cfg quality.ThresholdConfig) ([]quality.Finding, error) {
	if cfg.DuplicateLimit < 0 {
		return nil, fmt.Errorf("duplicate_limit %d < 0", cfg.DuplicateLimit)
	}

	res := CheckDuplicates(ds)
	if res.Count <= cfg.DuplicateLimit {
		return nil, nil
	}
	c.log.Warn("Found %d duplicate rows: %v", res.Count, res.Rows)

	f := quality.NewFinding(quality.KindDuplicate,
		fmt.Sprintf("Duplicates Exceed Threshold: %d", res.Count),
		res.Count, res.Rows)
	return []quality.Finding{f.WithDetails(map[string]any{
		"limit": cfg.DuplicateLimit,
	})}, nil
}
