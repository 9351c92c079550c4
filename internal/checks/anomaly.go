package checks

import (
	"fmt"

	"dqmon/adapters/stats/isolation"
	"dqmon/domain/quality"
	"dqmon/internal"
)

// OutlierResult is the outcome of anomaly detection over the numeric columns
type OutlierResult struct {
	Rows    []int
	Columns []string
	Scores  []float64
	Summary isolation.ScoreSummary
}

// DetectOutliers scores every row over the dataset's numeric columns and
// returns the flagged rows in ascending order. Missing numeric cells count
// as 0. A dataset without numeric columns yields no outliers.
func DetectOutliers(ds *quality.Dataset, contamination float64, forest *isolation.Forest) (*OutlierResult, error) {
	if err := quality.ValidateContamination(contamination); err != nil {
		return nil, err
	}

	cols := ds.NumericColumns()
	res := &OutlierResult{Rows: []int{}, Columns: cols}
	if len(cols) == 0 || ds.Len() == 0 {
		return res, nil
	}

	matrix := make([][]float64, ds.Len())
	for i := range matrix {
		row := make([]float64, len(cols))
		for j, col := range cols {
			if f, ok := ds.Value(i, col).Float64(); ok {
				row[j] = f
			}
		}
		matrix[i] = row
	}

	detected, err := forest.Detect(matrix, contamination)
	if err != nil {
		return nil, err
	}
	res.Rows = detected.Outliers
	res.Scores = detected.Scores
	res.Summary = detected.Summary
	return res, nil
}

// AnomalyCheck emits an ANOMALY finding when the forest flags any row
type AnomalyCheck struct {
	log    *internal.Logger
	forest *isolation.Forest
}

// NewAnomalyCheck creates the anomaly check around a configured forest
func NewAnomalyCheck(log *internal.Logger, forest *isolation.Forest) *AnomalyCheck {
	if forest == nil {
		forest = isolation.NewForest(isolation.DefaultOptions(), nil)
	}
	return &AnomalyCheck{log: log, forest: forest}
}

func (c *AnomalyCheck) Name() string              { return "anomalies" }
func (c *AnomalyCheck) Kind() quality.FindingKind { return quality.KindAnomaly }

func (c *AnomalyCheck) Run(ds *quality.Dataset, cfg quality.ThresholdConfig) ([]quality.Finding, error) {
	res, err := DetectOutliers(ds, cfg.Contamination, c.forest)
	if err != nil {
		return nil, err
	}
	if len(res.Columns) == 0 {
		c.log.Debug("No numeric columns, skipping anomaly detection")
		return nil, nil
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	c.log.Warn("Anomalies detected in rows %v", res.Rows)

	f := quality.NewFinding(quality.KindAnomaly,
		fmt.Sprintf("Anomalies Detected: %d rows", len(res.Rows)),
		len(res.Rows), res.Rows)
	return []quality.Finding{f.WithDetails(map[string]any{
		"columns":       res.Columns,
		"contamination": cfg.Contamination,
		"score_mean":    res.Summary.Mean,
		"score_p95":     res.Summary.P95,
		"score_max":     res.Summary.Max,
	})}, nil
}
