package forest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// #region fit
// Fit trains a forest on rows x with labels y (Negative or Positive).
//
// All randomness comes from rng: one pair of sub-seeds per tree is drawn
// before any tree is built, so the result does not depend on Workers.
func Fit(x [][]float64, y []int, features []string, config Config, rng *rand.Rand) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("fit forest: no rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit forest: %d rows but %d labels", len(x), len(y))
	}
	p := len(features)
	if p == 0 {
		return nil, fmt.Errorf("fit forest: no features")
	}
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("fit forest: row %d has %d values, want %d", i, len(row), p)
		}
		if y[i] != Negative && y[i] != Positive {
			return nil, fmt.Errorf("fit forest: row %d has label %d", i, y[i])
		}
	}
	if config.NumTrees < 1 {
		return nil, fmt.Errorf("fit forest: ensemble size %d", config.NumTrees)
	}
	mtry := config.MTry
	if mtry == 0 {
		mtry = DefaultMTry(p)
	}
	if mtry < 1 || mtry > p {
		return nil, fmt.Errorf("fit forest: mtry %d outside [1, %d]", mtry, p)
	}
	minNode := config.MinNodeSize
	if minNode < 1 {
		minNode = 1
	}

	type seed struct{ a, b uint64 }
	seeds := make([]seed, config.NumTrees)
	for i := range seeds {
		seeds[i] = seed{rng.Uint64(), rng.Uint64()}
	}

	n := len(x)
	trees := make([]Tree, config.NumTrees)
	imps := make([][]float64, config.NumTrees)
	inBag := make([][]bool, config.NumTrees)

	var g errgroup.Group
	g.SetLimit(workers(config.Workers))
	for t := range trees {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(seeds[t].a, seeds[t].b))
			sample := make([]int, n)
			bag := make([]bool, n)
			for i := range sample {
				sample[i] = r.IntN(n)
				bag[sample[i]] = true
			}
			trees[t], imps[t] = growTree(x, y, sample, mtry, minNode, p, r)
			inBag[t] = bag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	decrease := make([]float64, p)
	for _, imp := range imps {
		floats.Add(decrease, imp)
	}

	f := &Forest{
		Features:     append([]string(nil), features...),
		MTry:         mtry,
		Trees:        trees,
		GiniDecrease: decrease,
	}
	f.OOBError = f.oobError(x, y, inBag)
	return f, nil
}

// DefaultMTry is floor(sqrt(p)), at least 1.
func DefaultMTry(p int) int {
	m := int(math.Floor(math.Sqrt(float64(p))))
	if m < 1 {
		return 1
	}
	return m
}

func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// #endregion fit

// #region predict
// Votes returns the number of trees voting for Positive.
func (f *Forest) Votes(row []float64) int {
	votes := 0
	for _, t := range f.Trees {
		if t.predict(row) == Positive {
			votes++
		}
	}
	return votes
}

// Predict returns the majority vote; an even split goes to Positive.
func (f *Forest) Predict(row []float64) int {
	if 2*f.Votes(row) >= len(f.Trees) {
		return Positive
	}
	return Negative
}

// PredictAll predicts every row.
func (f *Forest) PredictAll(rows [][]float64) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = f.Predict(r)
	}
	return out
}

func (f *Forest) oobError(x [][]float64, y []int, inBag [][]bool) float64 {
	wrong, scored := 0, 0
	for i := range x {
		pos, total := 0, 0
		for t, tree := range f.Trees {
			if inBag[t][i] {
				continue
			}
			total++
			if tree.predict(x[i]) == Positive {
				pos++
			}
		}
		if total == 0 {
			continue
		}
		pred := Negative
		if 2*pos >= total {
			pred = Positive
		}
		scored++
		if pred != y[i] {
			wrong++
		}
	}
	if scored == 0 {
		return -1
	}
	return float64(wrong) / float64(scored)
}

// #endregion predict

// #region importance
// Importance returns the mean decrease in Gini impurity per feature
// (total decrease divided by the number of trees, unscaled), highest first.
// Ties keep the training column order.
func (f *Forest) Importance() []FeatureScore {
	out := make([]FeatureScore, len(f.Features))
	for i, name := range f.Features {
		out[i] = FeatureScore{Feature: name, Score: f.GiniDecrease[i] / float64(len(f.Trees))}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// #endregion importance
