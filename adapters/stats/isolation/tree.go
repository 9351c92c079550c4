package isolation

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// eulerGamma is the Euler–Mascheroni constant used by the harmonic estimate
const eulerGamma = 0.5772156649015329

// node is an internal split or a leaf. Leaves keep the number of training rows
// that reached them.
type node struct {
	feature     int
	split       float64
	left, right *node
	size        int
}

func (n *node) isLeaf() bool {
	return n.left == nil
}

// pathLength counts the edges from the root to x's leaf plus the expected
// remaining depth for the rows the leaf could not separate
func (n *node) pathLength(x []float64) float64 {
	depth := 0
	cur := n
	for !cur.isLeaf() {
		if x[cur.feature] < cur.split {
			cur = cur.left
		} else {
			cur = cur.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(cur.size)
}

type splitRange struct {
	feature int
	lo, hi  float64
}

type builder struct {
	data     [][]float64
	features int
	maxDepth int
	rng      *rand.Rand
	scratch  []float64
}

func newBuilder(data [][]float64, maxDepth int, r *rand.Rand) *builder {
	return &builder{
		data:     data,
		features: len(data[0]),
		maxDepth: maxDepth,
		rng:      r,
		scratch:  make([]float64, len(data)),
	}
}

func (b *builder) build() *node {
	rows := make([]int, len(b.data))
	for i := range rows {
		rows[i] = i
	}
	return b.grow(rows, 0)
}

// grow splits rows until one row is left, the depth limit is reached or every
// feature is constant across the rows
func (b *builder) grow(rows []int, depth int) *node {
	if len(rows) <= 1 || depth >= b.maxDepth {
		return &node{size: len(rows)}
	}

	candidates := b.ranges(rows)
	if len(candidates) == 0 {
		return &node{size: len(rows)}
	}

	c := candidates[b.rng.Intn(len(candidates))]
	// 1-u is in (0,1], so the split lies in (lo,hi] and both sides are non-empty
	split := c.lo + (1-b.rng.Float64())*(c.hi-c.lo)

	i := 0
	for j := range rows {
		if b.data[rows[j]][c.feature] < split {
			rows[i], rows[j] = rows[j], rows[i]
			i++
		}
	}

	return &node{
		feature: c.feature,
		split:   split,
		left:    b.grow(rows[:i], depth+1),
		right:   b.grow(rows[i:], depth+1),
		size:    len(rows),
	}
}

// ranges returns the features that still vary across rows with their bounds
func (b *builder) ranges(rows []int) []splitRange {
	col := b.scratch[:len(rows)]
	var out []splitRange
	for f := 0; f < b.features; f++ {
		for i, r := range rows {
			col[i] = b.data[r][f]
		}
		lo, hi := floats.Min(col), floats.Max(col)
		if hi > lo {
			out = append(out, splitRange{feature: f, lo: lo, hi: hi})
		}
	}
	return out
}

// averagePathLength is c(m), the expected path length of an unsuccessful
// search in a binary search tree of m nodes
func averagePathLength(m int) float64 {
	switch {
	case m <= 1:
		return 0
	case m == 2:
		return 1
	default:
		fm := float64(m)
		return 2*(math.Log(fm-1)+eulerGamma) - 2*(fm-1)/fm
	}
}
