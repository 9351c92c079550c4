package engine

import (
	"errors"
	"testing"

	"dqmon/adapters/stats/isolation"
	"dqmon/domain/quality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario(t *testing.T) (*quality.Dataset, quality.ThresholdConfig) {
	t.Helper()
	v := quality.NewIntValue
	ds, err := quality.FromColumns([]string{"id", "revenue"}, map[string][]quality.Value{
		"id":      {v(1), v(2), v(3), v(3), v(4)},
		"revenue": {v(100), v(200), v(150), v(150), v(10000)},
	})
	require.NoError(t, err)

	cfg := quality.ThresholdConfig{
		MissingValueLimit: 0,
		DuplicateLimit:    0,
		Contamination:     0.2,
		CustomRules: []quality.CustomRule{
			{Column: "revenue", Condition: quality.ConditionMax, Threshold: 5000},
		},
	}
	return ds, cfg
}

func TestEvaluate_EndToEnd(t *testing.T) {
	ds, cfg := scenario(t)
	eng := New(nil, isolation.NewForest(isolation.Options{Seed: 42}, nil))

	report := eng.Evaluate(ds, nil, cfg)
	require.True(t, report.HasIssues())
	require.Equal(t, 3, report.Len())

	dup := report.Findings[0]
	assert.Equal(t, quality.KindDuplicate, dup.Kind)
	assert.Equal(t, 1, dup.Count)
	assert.Equal(t, []int{3}, dup.RowIndices)

	anomaly := report.Findings[1]
	assert.Equal(t, quality.KindAnomaly, anomaly.Kind)
	assert.Equal(t, []int{4}, anomaly.RowIndices)

	rule := report.Findings[2]
	assert.Equal(t, quality.KindCustomRule, rule.Kind)
	assert.Equal(t, "Custom Rule Violation (revenue MAX 5000): 1 rows", rule.Message)
	assert.Equal(t, []int{4}, rule.RowIndices)

	assert.Empty(t, report.ByKind(quality.KindMissing))
}

func TestEvaluate_Idempotent(t *testing.T) {
	ds, cfg := scenario(t)
	eng := New(nil, isolation.NewForest(isolation.Options{Seed: 42}, nil))

	first := eng.Evaluate(ds, nil, cfg)
	second := eng.Evaluate(ds, nil, cfg)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
}

func TestEvaluate_LoadError(t *testing.T) {
	_, cfg := scenario(t)
	eng := New(nil, nil)

	report := eng.Evaluate(nil, errors.New("connection refused"), cfg)
	require.Equal(t, 1, report.Len())
	f := report.Findings[0]
	assert.Equal(t, quality.KindLoadError, f.Kind)
	assert.Equal(t, "Data Load Error: connection refused", f.Message)
	assert.True(t, f.IsError())
}

func TestEvaluate_LoadErrorIgnoresDataset(t *testing.T) {
	ds, cfg := scenario(t)
	report := New(nil, nil).Evaluate(ds, errors.New("stale snapshot"), cfg)

	require.Equal(t, 1, report.Len())
	assert.Equal(t, quality.KindLoadError, report.Findings[0].Kind)
}

func TestEvaluate_NilDataset(t *testing.T) {
	report := New(nil, nil).Evaluate(nil, nil, quality.DefaultThresholdConfig())

	require.Equal(t, 1, report.Len())
	assert.Equal(t, quality.KindLoadError, report.Findings[0].Kind)
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	ds, err := quality.NewDataset([]string{"id", "revenue"}, nil)
	require.NoError(t, err)
	_, cfg := scenario(t)

	report := New(nil, nil).Evaluate(ds, nil, cfg)
	assert.False(t, report.HasIssues())
	assert.Equal(t, 0, report.Len())
}

func TestEvaluate_BadRuleStillReportsOthers(t *testing.T) {
	ds, cfg := scenario(t)
	cfg.CustomRules = append([]quality.CustomRule{
		{Column: "profit", Condition: quality.ConditionMax, Threshold: 0},
	}, cfg.CustomRules...)

	report := New(nil, isolation.NewForest(isolation.Options{Seed: 42}, nil)).Evaluate(ds, nil, cfg)
	rules := report.ByKind(quality.KindCustomRule)
	require.Len(t, rules, 2)
	assert.True(t, rules[0].IsError())
	assert.False(t, rules[1].IsError())
	assert.Len(t, report.ByKind(quality.KindDuplicate), 1)
}
