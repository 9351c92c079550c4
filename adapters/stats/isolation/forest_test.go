package isolation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterWithOutlier returns a 10x5 grid of points and one far-away point at index 50
func clusterWithOutlier() [][]float64 {
	data := make([][]float64, 0, 51)
	for i := 0; i < 50; i++ {
		data = append(data, []float64{float64(i % 10), float64(i / 10)})
	}
	return append(data, []float64{100, 100})
}

func TestAveragePathLength(t *testing.T) {
	tests := []struct {
		m    int
		want float64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2*(math.Log(2)+eulerGamma) - 4.0/3.0},
		{256, 2*(math.Log(255)+eulerGamma) - 2*255.0/256.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, averagePathLength(tt.m), 1e-12, "c(%d)", tt.m)
	}
}

func TestForest_DeterministicForSeed(t *testing.T) {
	data := clusterWithOutlier()

	a, err := NewForest(Options{Seed: 7}, nil).Detect(data, 0.05)
	require.NoError(t, err)
	b, err := NewForest(Options{Seed: 7}, nil).Detect(data, 0.05)
	require.NoError(t, err)

	assert.Equal(t, a.Scores, b.Scores)
	assert.Equal(t, a.Outliers, b.Outliers)
}

func TestForest_WorkerCountDoesNotChangeScores(t *testing.T) {
	data := clusterWithOutlier()

	serial, err := NewForest(Options{Seed: 42, Workers: 1}, nil).Scores(data)
	require.NoError(t, err)
	parallel, err := NewForest(Options{Seed: 42, Workers: 8}, nil).Scores(data)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestForest_IsolatesFarPoint(t *testing.T) {
	data := clusterWithOutlier()

	res, err := NewForest(DefaultOptions(), nil).Detect(data, 0.02)
	require.NoError(t, err)

	assert.Equal(t, []int{50}, res.Outliers)
	for i, s := range res.Scores[:50] {
		assert.Less(t, s, res.Scores[50], "row %d should score below the outlier", i)
	}
	assert.Equal(t, res.Scores[50], res.Summary.Max)
}

func TestForest_ConstantRowsScoreHalf(t *testing.T) {
	data := make([][]float64, 8)
	for i := range data {
		data[i] = []float64{3, 3}
	}

	scores, err := NewForest(DefaultOptions(), nil).Scores(data)
	require.NoError(t, err)
	for _, s := range scores {
		assert.InDelta(t, 0.5, s, 1e-12)
	}
}

func TestForest_ConstantRowsAreNotOutliers(t *testing.T) {
	data := make([][]float64, 10)
	for i := range data {
		data[i] = []float64{7}
	}
	f := NewForest(Options{Seed: 42}, nil)

	for _, contamination := range []float64{0.1, 0.5, 0.95} {
		res, err := f.Detect(data, contamination)
		require.NoError(t, err)
		assert.Empty(t, res.Outliers, "contamination %v", contamination)
	}
}

func TestForest_TiesAtBoundaryShareVerdict(t *testing.T) {
	// the pair at 100 always splits off first and cannot be separated, so
	// both of its rows score the same
	data := [][]float64{{0}, {0}, {0}, {0}, {0}, {0}, {100}, {100}}
	f := NewForest(Options{Seed: 42}, nil)

	tests := []struct {
		name          string
		contamination float64
		want          []int
	}{
		{"boundary splits the pair", 0.125, []int{}},
		{"boundary below the pair", 0.25, []int{6, 7}},
		{"boundary splits the cluster", 0.5, []int{6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Detect(data, tt.contamination)
			require.NoError(t, err)
			assert.Equal(t, res.Scores[6], res.Scores[7])
			assert.Equal(t, tt.want, res.Outliers)
		})
	}
}

func TestForest_ScoreCutoffExtendsContamination(t *testing.T) {
	data := clusterWithOutlier()

	res, err := NewForest(Options{ScoreCutoff: 0.01}, nil).Detect(data, 0.02)
	require.NoError(t, err)
	assert.Len(t, res.Outliers, len(data))
}

func TestForest_SmallInputs(t *testing.T) {
	f := NewForest(DefaultOptions(), nil)

	res, err := f.Detect(nil, 0.1)
	require.NoError(t, err)
	assert.Empty(t, res.Outliers)

	res, err = f.Detect([][]float64{{1}}, 0.9)
	require.NoError(t, err)
	assert.Empty(t, res.Outliers)
	assert.Equal(t, []float64{0.5}, res.Scores)
}

func TestForest_RejectsBadInput(t *testing.T) {
	f := NewForest(DefaultOptions(), nil)

	tests := []struct {
		name          string
		data          [][]float64
		contamination float64
	}{
		{"zero contamination", [][]float64{{1}, {2}}, 0},
		{"contamination of one", [][]float64{{1}, {2}}, 1},
		{"ragged rows", [][]float64{{1, 2}, {3}}, 0.1},
		{"nan feature", [][]float64{{1}, {math.NaN()}}, 0.1},
		{"infinite feature", [][]float64{{1}, {math.Inf(1)}}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Detect(tt.data, tt.contamination)
			assert.Error(t, err)
		})
	}
}
