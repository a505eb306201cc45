package train

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// StratifiedSplit shuffles sample indices into train and test sets while
// keeping each class's share roughly equal on both sides. testSize is the
// test fraction in (0, 1).
func StratifiedSplit(y []int, testSize float64, seed int64) (trainIdx, testIdx []int, err error) {
	n := len(y)
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, idx := range byClass {
		if len(idx) < 2 {
			return nil, nil, errors.Errorf("class %d has only %d sample, need at least 2 to stratify", c, len(idx))
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < len(classes) || nTest < len(classes) {
		return nil, nil, errors.Errorf("cannot split %d samples of %d classes with test size %v", n, len(classes), testSize)
	}

	counts := make([]int, len(classes))
	for i, c := range classes {
		counts[i] = len(byClass[c])
	}
	trainCounts := approximateMode(counts, nTrain)

	rng := rand.New(rand.NewSource(seed))
	for i, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		trainIdx = append(trainIdx, idx[:trainCounts[i]]...)
		testIdx = append(testIdx, idx[trainCounts[i]:]...)
	}
	rng.Shuffle(len(trainIdx), func(a, b int) { trainIdx[a], trainIdx[b] = trainIdx[b], trainIdx[a] })
	rng.Shuffle(len(testIdx), func(a, b int) { testIdx[a], testIdx[b] = testIdx[b], testIdx[a] })

	return trainIdx, testIdx, nil
}

// approximateMode spreads draw samples over classes in proportion to counts,
// flooring first and handing the remainder to the largest fractional parts.
func approximateMode(counts []int, draw int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}

	out := make([]int, len(counts))
	frac := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(c) * float64(draw) / float64(total)
		out[i] = int(math.Floor(exact))
		frac[i] = exact - float64(out[i])
		assigned += out[i]
	}

	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for _, i := range order {
		if assigned >= draw {
			break
		}
		if out[i] < counts[i] {
			out[i]++
			assigned++
		}
	}
	return out
}
