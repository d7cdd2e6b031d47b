package forest

import (
	"math/rand/v2"
	"sort"
)

// #region grow
// grower builds one tree from a bootstrap sample.
type grower struct {
	x          [][]float64
	y          []int
	mtry       int
	minNode    int
	rng        *rand.Rand
	nodes      []Node
	importance []float64
}

func growTree(x [][]float64, y []int, sample []int, mtry, minNode, nFeatures int, rng *rand.Rand) (Tree, []float64) {
	g := &grower{
		x:          x,
		y:          y,
		mtry:       mtry,
		minNode:    minNode,
		rng:        rng,
		importance: make([]float64, nFeatures),
	}
	g.grow(sample)
	return Tree{Nodes: g.nodes}, g.importance
}

// grow appends the subtree for idx and returns its node index.
func (g *grower) grow(idx []int) int {
	counts := g.count(idx)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Class: majority(counts), Counts: counts})

	if counts[0] == 0 || counts[1] == 0 || len(idx) < 2*g.minNode {
		return id
	}

	feature, threshold, decrease, ok := g.bestSplit(idx, counts)
	if !ok {
		return id
	}
	g.importance[feature] += decrease

	var left, right []int
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left)
	r := g.grow(right)
	g.nodes[id].Feature = feature
	g.nodes[id].Threshold = threshold
	g.nodes[id].Left = l
	g.nodes[id].Right = r
	return id
}

// bestSplit tries mtry randomly chosen features and returns the split with
// the largest weighted Gini decrease. Earlier candidates win ties.
func (g *grower) bestSplit(idx []int, parent [2]int) (int, float64, float64, bool) {
	n := float64(len(idx))
	parentImpurity := n * gini(parent)

	bestFeature, bestThreshold, bestDecrease := -1, 0.0, 0.0
	order := make([]int, len(idx))

	for _, f := range g.rng.Perm(len(g.importance))[:g.mtry] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return g.x[order[a]][f] < g.x[order[b]][f] })

		var left [2]int
		for k := 0; k < len(order)-1; k++ {
			left[g.y[order[k]]]++
			lo, hi := g.x[order[k]][f], g.x[order[k+1]][f]
			if lo == hi {
				continue
			}
			nl := k + 1
			nr := len(order) - nl
			if nl < g.minNode || nr < g.minNode {
				continue
			}
			right := [2]int{parent[0] - left[0], parent[1] - left[1]}
			decrease := parentImpurity - float64(nl)*gini(left) - float64(nr)*gini(right)
			if decrease > bestDecrease {
				bestFeature, bestThreshold, bestDecrease = f, (lo+hi)/2, decrease
			}
		}
	}
	return bestFeature, bestThreshold, bestDecrease, bestFeature >= 0
}

func (g *grower) count(idx []int) [2]int {
	var c [2]int
	for _, i := range idx {
		c[g.y[i]]++
	}
	return c
}

// #endregion grow

// #region predict
// predict walks the tree for one row.
func (t Tree) predict(row []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Class
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// #endregion predict

// #region helpers
func gini(c [2]int) float64 {
	n := float64(c[0] + c[1])
	if n == 0 {
		return 0
	}
	p0, p1 := float64(c[0])/n, float64(c[1])/n
	return 1 - p0*p0 - p1*p1
}

// majority returns the larger class; a tie goes to Positive.
func majority(c [2]int) int {
	if c[Negative] > c[Positive] {
		return Negative
	}
	return Positive
}

// #endregion helpers
