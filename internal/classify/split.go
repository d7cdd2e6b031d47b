package classify

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/records"
)

// #region split
// Split is a disjoint train/test partition of row indices.
type Split struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// StratifiedSplit draws ceil(p·n) rows of each class into the training set
// and leaves the rest for testing, so both sides keep the class ratio.
// Each class needs at least two rows so that both sides receive one.
func StratifiedSplit(labels []int, trainFraction float64, rng *rand.Rand) (Split, error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return Split{}, fmt.Errorf("train fraction %v outside (0, 1)", trainFraction)
	}

	var s Split
	for _, class := range []int{forest.Negative, forest.Positive} {
		members := classMembers(labels, class)
		if len(members) < 2 {
			return Split{}, insufficient("stratified split", class, len(members), 2)
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

		nTrain := int(math.Ceil(trainFraction * float64(len(members))))
		nTrain = min(max(nTrain, 1), len(members)-1)
		s.Train = append(s.Train, members[:nTrain]...)
		s.Test = append(s.Test, members[nTrain:]...)
	}
	slices.Sort(s.Train)
	slices.Sort(s.Test)
	return s, nil
}

// #endregion split

// #region folds
// Resample is one fold of one repeat: fit on Train, score on Holdout.
type Resample struct {
	Repeat  int
	Fold    int
	Train   []int
	Holdout []int
}

// RepeatedFolds builds repeats × k stratified folds over the label indices.
// Every class must have at least k rows so that each fold holds one of each.
func RepeatedFolds(labels []int, k, repeats int, rng *rand.Rand) ([]Resample, error) {
	if k < 2 {
		return nil, fmt.Errorf("cross-validation needs at least 2 folds, got %d", k)
	}
	if repeats < 1 {
		return nil, fmt.Errorf("cross-validation needs at least 1 repeat, got %d", repeats)
	}
	for _, class := range []int{forest.Negative, forest.Positive} {
		if n := len(classMembers(labels, class)); n < k {
			return nil, insufficient("cross-validation", class, n, k)
		}
	}

	var out []Resample
	for rep := 0; rep < repeats; rep++ {
		fold := make([]int, len(labels))
		for _, class := range []int{forest.Negative, forest.Positive} {
			members := classMembers(labels, class)
			rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
			for pos, i := range members {
				fold[i] = pos % k
			}
		}
		for f := 0; f < k; f++ {
			r := Resample{Repeat: rep, Fold: f}
			for i := range labels {
				if fold[i] == f {
					r.Holdout = append(r.Holdout, i)
				} else {
					r.Train = append(r.Train, i)
				}
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// #endregion folds

// #region helpers
func classMembers(labels []int, class int) []int {
	var out []int
	for i, l := range labels {
		if l == class {
			out = append(out, i)
		}
	}
	return out
}

func insufficient(stage string, class, have, need int) error {
	return &records.InsufficientDataError{Stage: stage, Class: ClassName(class), Have: have, Need: need}
}

// ClassName returns the outcome name for a label.
func ClassName(class int) string {
	if class == forest.Positive {
		return "died"
	}
	return "survived"
}

// #endregion helpers
