package riskmodel

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/liamcoop/healthrisk/features"
)

// Label thresholds on the mean of a synthetic sample.
const (
	mediumThreshold = 0.4
	highThreshold   = 0.7
)

// Dataset is a labelled design matrix.
type Dataset struct {
	X [][]float64
	Y []int
}

// GenerateSynthetic draws n samples of features.Count values uniformly from
// [0, 1) and labels each by the mean of its values.
// The same seed always yields the same dataset.
func GenerateSynthetic(n int, seed uint64) Dataset {
	rng := rand.New(rand.NewPCG(seed, seed))

	ds := Dataset{
		X: make([][]float64, n),
		Y: make([]int, n),
	}
	for i := range n {
		row := make([]float64, features.Count)
		for j := range row {
			row[j] = rng.Float64()
		}
		ds.X[i] = row
		ds.Y[i] = int(LabelForMean(stat.Mean(row, nil)))
	}
	return ds
}

// LabelForMean maps a sample mean to its synthetic risk label.
func LabelForMean(m float64) RiskLevel {
	switch {
	case m < mediumThreshold:
		return Low
	case m < highThreshold:
		return Medium
	default:
		return High
	}
}
