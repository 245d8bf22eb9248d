package riskmodel

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

const leaf = -1

// node is a decision-tree node stored in a flat slice.
// Samples with x[feature] <= threshold go left.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	proba     Probabilities
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) *Probabilities {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature == leaf {
			return &n.proba
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeParams struct {
	maxFeatures     int
	minSamplesSplit int
	maxDepth        int
}

// treeBuilder grows one CART tree using Gini impurity.
type treeBuilder struct {
	ds         Dataset
	nFeatures  int
	params     treeParams
	rng        *rand.Rand
	nodes      []node
	importance []float64
	sorted     []int
}

type split struct {
	feature   int
	threshold float64
	leftGini  float64
	rightGini float64
}

// growTree fits a tree on a bootstrap sample of ds and returns it with its
// normalized impurity-decrease importance per feature.
func growTree(ds Dataset, seed uint64, p treeParams) (*tree, []float64) {
	nFeatures := len(ds.X[0])
	b := &treeBuilder{
		ds:         ds,
		nFeatures:  nFeatures,
		params:     p,
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		importance: make([]float64, nFeatures),
	}

	n := len(ds.Y)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = b.rng.IntN(n)
	}
	b.sorted = make([]int, n)

	b.build(sample, 0)

	var total float64
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for i := range b.importance {
			b.importance[i] /= total
		}
	}

	return &tree{nodes: b.nodes}, b.importance
}

func (b *treeBuilder) build(idx []int, depth int) int {
	counts := b.classCounts(idx)
	impurity := gini(counts, len(idx))

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: leaf, proba: distribution(counts, len(idx))})

	if impurity == 0 || len(idx) < b.params.minSamplesSplit {
		return id
	}
	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return id
	}

	sp, ok := b.bestSplit(idx, counts)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.ds.X[i][sp.feature] <= sp.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[sp.feature] += float64(len(idx))*impurity -
		float64(len(left))*sp.leftGini -
		float64(len(right))*sp.rightGini

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	b.nodes[id].feature = sp.feature
	b.nodes[id].threshold = sp.threshold
	b.nodes[id].left = l
	b.nodes[id].right = r
	return id
}

// bestSplit draws candidate features in random order and keeps the split
// with the lowest weighted child impurity. At least maxFeatures features are
// inspected; more are drawn while no valid split has been found.
func (b *treeBuilder) bestSplit(idx []int, counts [ClassCount]int) (split, bool) {
	best := split{feature: leaf}
	bestScore := 0.0
	sorted := b.sorted[:len(idx)]

	for visited, f := range b.rng.Perm(b.nFeatures) {
		if visited >= b.params.maxFeatures && best.feature != leaf {
			break
		}

		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int {
			return cmp.Compare(b.ds.X[a][f], b.ds.X[c][f])
		})

		var left [ClassCount]int
		right := counts
		for k := 0; k < len(sorted)-1; k++ {
			c := b.ds.Y[sorted[k]]
			left[c]++
			right[c]--

			v := b.ds.X[sorted[k]][f]
			next := b.ds.X[sorted[k+1]][f]
			if next <= v {
				continue
			}

			nl := k + 1
			nr := len(sorted) - nl
			gl := gini(left, nl)
			gr := gini(right, nr)
			score := float64(nl)*gl + float64(nr)*gr
			if best.feature == leaf || score < bestScore {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, leftGini: gl, rightGini: gr}
				bestScore = score
			}
		}
	}

	return best, best.feature != leaf
}

func (b *treeBuilder) classCounts(idx []int) [ClassCount]int {
	var counts [ClassCount]int
	for _, i := range idx {
		counts[b.ds.Y[i]]++
	}
	return counts
}

func gini(counts [ClassCount]int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func distribution(counts [ClassCount]int, n int) Probabilities {
	var p Probabilities
	if n == 0 {
		return p
	}
	for c, k := range counts {
		p[c] = float64(k) / float64(n)
	}
	return p
}
