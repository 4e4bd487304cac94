package ml

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/yourusername/factorlab/internal/models"
	"golang.org/x/sync/errgroup"
)

// ForestConfig holds random-forest hyperparameters
type ForestConfig struct {
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	// MaxFeatures is the number of features tried per split; 0 means all
	MaxFeatures int
	Seed        int64
	Workers     int
}

// DefaultForestConfig returns 100 trees of depth 5 seeded with 42
func DefaultForestConfig() ForestConfig {
	return ForestConfig{NumTrees: 100, MaxDepth: 5, MinSamplesLeaf: 1, Seed: 42}
}

type treeNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

type tree struct {
	nodes []treeNode
}

func (t *tree) predict(x []float64) float64 {
	n := t.nodes[0]
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n.value
}

// Forest is a fitted bagged ensemble of regression trees
type Forest struct {
	trees       []*tree
	numFeatures int
	importances []float64
}

// FitForest trains the ensemble. Tree i draws its bootstrap sample and split
// candidates from a generator seeded with Seed+i, so the fitted forest does
// not depend on how trees are scheduled across workers.
func FitForest(ctx context.Context, x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d feature rows for %d labels", models.ErrInsufficientHistory, len(x), len(y))
	}
	if cfg.NumTrees <= 0 || cfg.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: forest needs positive tree count and depth", models.ErrInvalidInput)
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	p := len(x[0])
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", models.ErrInvalidInput, i, len(row), p)
		}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*tree, cfg.NumTrees)
	gains := make([][]float64, cfg.NumTrees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.NumTrees; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &builder{
				x:        x,
				y:        y,
				cfg:      cfg,
				rng:      rand.New(rand.NewSource(cfg.Seed + int64(i))),
				features: p,
				gains:    make([]float64, p),
			}
			sample := make([]int, len(y))
			for k := range sample {
				sample[k] = b.rng.Intn(len(y))
			}
			t := &tree{}
			b.grow(t, sample, 0)
			trees[i] = t
			gains[i] = b.gains
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	importances := make([]float64, p)
	total := 0.0
	for _, treeGains := range gains {
		for f, v := range treeGains {
			importances[f] += v
			total += v
		}
	}
	if total > 0 {
		for f := range importances {
			importances[f] /= total
		}
	}

	return &Forest{trees: trees, numFeatures: p, importances: importances}, nil
}

// Predict averages the tree predictions for one feature vector
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.numFeatures {
		return 0, fmt.Errorf("%w: got %d features, want %d", models.ErrInvalidInput, len(x), f.numFeatures)
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees)), nil
}

// NumTrees returns the ensemble size
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// FeatureImportances returns the normalized total impurity decrease per feature
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}

type builder struct {
	x        [][]float64
	y        []float64
	cfg      ForestConfig
	rng      *rand.Rand
	features int
	gains    []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// grow appends the subtree for sample to t and returns its node index
func (b *builder) grow(t *tree, sample []int, depth int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{leaf: true, value: b.mean(sample)})

	if depth >= b.cfg.MaxDepth || len(sample) < 2*b.cfg.MinSamplesLeaf {
		return idx
	}
	best, ok := b.bestSplit(sample)
	if !ok {
		return idx
	}
	b.gains[best.feature] += best.gain

	left := b.grow(t, best.left, depth+1)
	right := b.grow(t, best.right, depth+1)
	t.nodes[idx] = treeNode{feature: best.feature, threshold: best.threshold, left: left, right: right}
	return idx
}

func (b *builder) candidates() []int {
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= b.features {
		all := make([]int, b.features)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(b.features)[:b.cfg.MaxFeatures]
}

// bestSplit finds the threshold with the largest drop in squared error
func (b *builder) bestSplit(sample []int) (split, bool) {
	n := len(sample)
	sum, sumSq := 0.0, 0.0
	for _, i := range sample {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	parent := sumSq - sum*sum/float64(n)
	if parent <= 0 {
		return split{}, false
	}

	minLeaf := b.cfg.MinSamplesLeaf
	best := split{gain: 0}
	bestPos := -1
	var bestOrder []int

	order := make([]int, n)
	for _, f := range b.candidates() {
		copy(order, sample)
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		leftSum, leftSq := 0.0, 0.0
		for k := 1; k < n; k++ {
			yi := b.y[order[k-1]]
			leftSum += yi
			leftSq += yi * yi
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
			if lo == hi {
				continue
			}
			rightSum, rightSq := sum-leftSum, sumSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(k)) + (rightSq - rightSum*rightSum/float64(n-k))
			if gain := parent - sse; gain > best.gain {
				best = split{feature: f, threshold: (lo + hi) / 2, gain: gain}
				bestPos = k
				bestOrder = append(bestOrder[:0], order...)
			}
		}
	}
	if bestPos < 0 {
		return split{}, false
	}
	best.left = append([]int(nil), bestOrder[:bestPos]...)
	best.right = append([]int(nil), bestOrder[bestPos:]...)
	return best, true
}

func (b *builder) mean(sample []int) float64 {
	sum := 0.0
	for _, i := range sample {
		sum += b.y[i]
	}
	return sum / float64(len(sample))
}
