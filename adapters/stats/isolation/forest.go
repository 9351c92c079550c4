package isolation

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"dqmon/adapters/rng"
	"dqmon/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTrees is the ensemble size
	DefaultTrees = 100
	// DefaultSeed matches the fixed seed the monitor has always scored with
	DefaultSeed = 42
	// DefaultScoreCutoff flags a row regardless of contamination once its score
	// exceeds it; typical rows score near 0.5
	DefaultScoreCutoff = 0.75

	rngScope = "isolation"
)

// Options configures the forest
type Options struct {
	Trees       int     `json:"trees"`
	Seed        int64   `json:"seed"`
	Workers     int     `json:"workers"`
	ScoreCutoff float64 `json:"score_cutoff"`
	// MaxDepth caps tree height; 0 derives ceil(log2 n) from the row count
	MaxDepth int `json:"max_depth"`
}

// DefaultOptions returns 100 trees, seed 42 and one worker per CPU
func DefaultOptions() Options {
	return Options{
		Trees:       DefaultTrees,
		Seed:        DefaultSeed,
		Workers:     runtime.GOMAXPROCS(0),
		ScoreCutoff: DefaultScoreCutoff,
	}
}

// Forest scores rows by how easily random axis-aligned splits isolate them.
// It keeps no state between calls.
type Forest struct {
	opts Options
	rng  ports.RNGPort
}

// Result is the outcome of one detection
type Result struct {
	Scores   []float64    `json:"scores"`
	Outliers []int        `json:"outliers"`
	Summary  ScoreSummary `json:"summary"`
}

// ScoreSummary describes the score distribution of one detection
type ScoreSummary struct {
	Mean float64 `json:"mean"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`
}

// NewForest creates a forest. Zero-valued options fall back to defaults and a
// nil RNG uses the math/rand adapter.
func NewForest(opts Options, rngPort ports.RNGPort) *Forest {
	def := DefaultOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.ScoreCutoff <= 0 {
		opts.ScoreCutoff = def.ScoreCutoff
	}
	if rngPort == nil {
		rngPort = rng.New()
	}
	return &Forest{opts: opts, rng: rngPort}
}

// Options returns the effective options
func (f *Forest) Options() Options {
	return f.opts
}

// Scores returns the anomaly score of every row of data (rows x features).
// Scores approach 1 for isolated rows and sit near 0.5 for typical ones.
// Fewer than two rows cannot be compared and score 0.5.
func (f *Forest) Scores(data [][]float64) ([]float64, error) {
	n := len(data)
	if err := validate(data); err != nil {
		return nil, err
	}
	scores := make([]float64, n)
	if n < 2 {
		for i := range scores {
			scores[i] = 0.5
		}
		return scores, nil
	}

	maxDepth := f.opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = int(math.Ceil(math.Log2(float64(n))))
	}

	paths := make([][]float64, f.opts.Trees)
	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for t := 0; t < f.opts.Trees; t++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("tree %d: %v", t, r)
				}
			}()
			stream := f.rng.Stream(rngScope, "tree-"+strconv.Itoa(t), f.opts.Seed)
			root := newBuilder(data, maxDepth, stream).build()
			p := make([]float64, n)
			for i, x := range data {
				p[i] = root.pathLength(x)
			}
			paths[t] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to grow isolation forest: %w", err)
	}

	// trees are summed in index order so the result does not depend on
	// which worker finished first
	norm := averagePathLength(n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for t := 0; t < f.opts.Trees; t++ {
			sum += paths[t][i]
		}
		avg := sum / float64(f.opts.Trees)
		scores[i] = math.Pow(2, -avg/norm)
	}
	return scores, nil
}

// Detect scores the rows and flags the top round(contamination*n) of them,
// extended to every row scoring strictly above the score cutoff. Below the
// cutoff, rows tied with the first unflagged row are not flagged either.
// Outliers are returned in ascending row order.
func (f *Forest) Detect(data [][]float64, contamination float64) (*Result, error) {
	if !(contamination > 0 && contamination < 1) {
		return nil, fmt.Errorf("contamination %v not in (0,1)", contamination)
	}
	scores, err := f.Scores(data)
	if err != nil {
		return nil, err
	}

	res := &Result{Scores: scores, Outliers: []int{}}
	n := len(scores)
	if n < 2 {
		return res, nil
	}
	res.Summary = summarize(scores)

	above := 0
	for _, s := range scores {
		if s > f.opts.ScoreCutoff {
			above++
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k := untie(scores, order, int(math.Round(contamination*float64(n))))
	if above > k {
		k = above
	}
	res.Outliers = append(res.Outliers, order[:k]...)
	sort.Ints(res.Outliers)
	return res, nil
}

// untie shrinks k so rows scoring the same as the last flagged row share its
// verdict. A tied group straddling the boundary, or the lowest-scoring group
// when k covers every row, is left unflagged, so uniform data has no outliers.
func untie(scores []float64, order []int, k int) int {
	if k > len(order) {
		k = len(order)
	}
	if k == 0 {
		return 0
	}
	boundary := scores[order[k-1]]
	if k < len(order) && scores[order[k]] != boundary {
		return k
	}
	for k > 0 && scores[order[k-1]] == boundary {
		k--
	}
	return k
}

func validate(data [][]float64) error {
	if len(data) == 0 {
		return nil
	}
	width := len(data[0])
	if width == 0 {
		return fmt.Errorf("rows have no features")
	}
	for i, row := range data {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d feature %d is not finite: %v", i, j, v)
			}
		}
	}
	return nil
}

func summarize(scores []float64) ScoreSummary {
	mean, _ := stats.Mean(scores)
	p95, _ := stats.Percentile(scores, 95)
	max, _ := stats.Max(scores)
	return ScoreSummary{Mean: mean, P95: p95, Max: max}
}
