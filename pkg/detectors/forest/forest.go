// Package forest implements a random forest classifier built from CART
// trees with Gini impurity, bootstrap sampling and optional balanced class
// weights.
package forest

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/hed1ad/zigsense/pkg/detectors"
)

// RandomForest is a bagged ensemble of decision trees.
type RandomForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees          int
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	balanced        bool
	rng             *rand.Rand

	// Trained model
	classes   []int
	nFeatures int
	trees     []*Node
	trained   bool
}

// Node is a decision tree node. Leaves carry class probabilities in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	Value     []float64
}

func (n *Node) leaf() bool {
	return n.Left == nil || n.Right == nil
}

// Option configures a RandomForest.
type Option func(*RandomForest)

// WithTrees sets the number of trees.
func WithTrees(n int) Option {
	return func(f *RandomForest) {
		f.nTrees = n
	}
}

// WithMaxDepth bounds tree depth. Zero means unbounded.
func WithMaxDepth(d int) Option {
	return func(f *RandomForest) {
		f.maxDepth = d
	}
}

// WithMinSamplesSplit sets the fewest distinct samples a node needs to split.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForest) {
		f.minSamplesSplit = n
	}
}

// WithMaxFeatures sets how many features each split considers. Zero means
// the square root of the feature count.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForest) {
		f.maxFeatures = n
	}
}

// WithBalancedClassWeight weights each class inversely to its frequency.
func WithBalancedClassWeight(on bool) Option {
	return func(f *RandomForest) {
		f.balanced = on
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *RandomForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates a new RandomForest with the given options.
func New(opts ...Option) *RandomForest {
	f := &RandomForest{
		nTrees:          100,
		minSamplesSplit: 2,
		rng:             rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FromConfig creates a balanced RandomForest from shared settings.
func FromConfig(cfg detectors.Config) *RandomForest {
	return New(
		WithTrees(cfg.Trees),
		WithMaxDepth(cfg.MaxDepth),
		WithBalancedClassWeight(true),
		WithSeed(cfg.RandomSeed),
	)
}

// Fit trains the forest on X with labels y.
func (f *RandomForest) Fit(X [][]float64, y []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(X) == 0 {
		return detectors.ErrEmptyData
	}
	if len(X) != len(y) {
		return errors.Errorf("%d samples but %d labels", len(X), len(y))
	}
	if f.nTrees <= 0 {
		return errors.Errorf("need at least one tree, got %d", f.nTrees)
	}

	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return errors.Wrapf(detectors.ErrDimension, "row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	classes, encoded := encode(y)
	weights := make([]float64, len(classes))
	counts := make([]int, len(classes))
	for _, c := range encoded {
		counts[c]++
	}
	for c := range weights {
		weights[c] = 1
		if f.balanced {
			weights[c] = float64(len(y)) / float64(len(classes)*counts[c])
		}
	}

	maxFeatures := f.maxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	b := &builder{
		X:               X,
		y:               encoded,
		nClasses:        len(classes),
		nFeatures:       nFeatures,
		maxFeatures:     maxFeatures,
		maxDepth:        f.maxDepth,
		minSamplesSplit: f.minSamplesSplit,
		rng:             f.rng,
	}

	n := len(X)
	f.trees = make([]*Node, f.nTrees)
	for t := 0; t < f.nTrees; t++ {
		// Bootstrap: draw n samples with replacement, keep multiplicity as weight.
		drawn := make([]float64, n)
		for i := 0; i < n; i++ {
			drawn[f.rng.Intn(n)]++
		}
		b.w = make([]float64, n)
		samples := make([]int, 0, n)
		for i, k := range drawn {
			if k > 0 {
				b.w[i] = k * weights[encoded[i]]
				samples = append(samples, i)
			}
		}
		f.trees[t] = b.build(samples, 0)
	}

	f.classes = classes
	f.nFeatures = nFeatures
	f.trained = true
	return nil
}

func encode(y []int) ([]int, []int) {
	seen := make(map[int]struct{})
	for _, v := range y {
		seen[v] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(y))
	for i, v := range y {
		encoded[i] = index[v]
	}
	return classes, encoded
}

// builder grows one tree over a weighted bootstrap sample.
type builder struct {
	X               [][]float64
	y               []int
	w               []float64
	nClasses        int
	nFeatures       int
	maxFeatures     int
	maxDepth        int
	minSamplesSplit int
	rng             *rand.Rand
}

func (b *builder) distribution(samples []int) ([]float64, float64) {
	dist := make([]float64, b.nClasses)
	var total float64
	for _, s := range samples {
		dist[b.y[s]] += b.w[s]
		total += b.w[s]
	}
	return dist, total
}

func (b *builder) leaf(dist []float64, total float64) *Node {
	value := make([]float64, len(dist))
	for i, v := range dist {
		if total > 0 {
			value[i] = v / total
		}
	}
	return &Node{Value: value}
}

func (b *builder) build(samples []int, depth int) *Node {
	dist, total := b.distribution(samples)

	if (b.maxDepth > 0 && depth >= b.maxDepth) || len(samples) < b.minSamplesSplit || pure(dist) {
		return b.leaf(dist, total)
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return b.leaf(dist, total)
	}

	var left, right []int
	for _, s := range samples {
		if b.X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit scans features in random order until maxFeatures non-constant
// ones have been evaluated and returns the split with the lowest weighted
// Gini impurity.
func (b *builder) bestSplit(samples []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)

	sorted := make([]int, len(samples))
	visited := 0
	for _, feature := range b.rng.Perm(b.nFeatures) {
		if visited >= b.maxFeatures {
			break
		}

		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool {
			return b.X[sorted[i]][feature] < b.X[sorted[j]][feature]
		})
		if b.X[sorted[0]][feature] == b.X[sorted[len(sorted)-1]][feature] {
			continue
		}
		visited++

		right, rightTotal := b.distribution(sorted)
		left := make([]float64, b.nClasses)
		var leftTotal float64

		for i := 0; i < len(sorted)-1; i++ {
			s := sorted[i]
			left[b.y[s]] += b.w[s]
			right[b.y[s]] -= b.w[s]
			leftTotal += b.w[s]
			rightTotal -= b.w[s]

			cur, next := b.X[s][feature], b.X[sorted[i+1]][feature]
			if cur == next {
				continue
			}

			impurity := leftTotal*gini(left, leftTotal) + rightTotal*gini(right, rightTotal)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = cur + (next-cur)/2
				if bestThreshold >= next {
					bestThreshold = cur
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range dist {
		p := v / total
		sum += p * p
	}
	return 1 - sum
}

func pure(dist []float64) bool {
	nonZero := 0
	for _, v := range dist {
		if v > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// Predict returns the majority class per sample.
func (f *RandomForest) Predict(X [][]float64) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]int, len(proba))
	for i, p := range proba {
		best := 0
		for c := 1; c < len(p); c++ {
			if p[c] > p[best] {
				best = c
			}
		}
		out[i] = f.classes[best]
	}
	return out, nil
}

// PredictProba returns the mean class probabilities per sample, in the
// order of Classes.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	out := make([][]float64, len(X))
	for i, sample := range X {
		if len(sample) != f.nFeatures {
			return nil, errors.Wrapf(detectors.ErrDimension, "sample %d has %d features, want %d", i, len(sample), f.nFeatures)
		}
		p := make([]float64, len(f.classes))
		for _, tree := range f.trees {
			n := tree
			for !n.leaf() {
				if sample[n.Feature] <= n.Threshold {
					n = n.Left
				} else {
					n = n.Right
				}
			}
			for c, v := range n.Value {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(f.trees))
		}
		out[i] = p
	}
	return out, nil
}

// Classes returns the labels seen during Fit, ascending.
func (f *RandomForest) Classes() []int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]int(nil), f.classes...)
}

type snapshot struct {
	NTrees    int
	MaxDepth  int
	Balanced  bool
	Classes   []int
	NFeatures int
	Trees     []*Node
}

// Save serializes the trained model.
func (f *RandomForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		NTrees:    f.nTrees,
		MaxDepth:  f.maxDepth,
		Balanced:  f.balanced,
		Classes:   f.classes,
		NFeatures: f.nFeatures,
		Trees:     f.trees,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode random forest")
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *RandomForest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode random forest")
	}
	if len(s.Trees) == 0 || len(s.Classes) == 0 {
		return errors.New("decode random forest: empty model")
	}

	f.nTrees = s.NTrees
	f.maxDepth = s.MaxDepth
	f.balanced = s.Balanced
	f.classes = s.Classes
	f.nFeatures = s.NFeatures
	f.trees = s.Trees
	f.trained = true
	return nil
}
