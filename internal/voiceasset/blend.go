package voiceasset

import (
	"errors"
	"fmt"
	"math"
)

// ErrBlendInputs is returned when Blend receives mismatched or empty input.
var ErrBlendInputs = errors.New("voiceasset: invalid blend inputs")

// BlendWeighted combines multiple style matrices into one using a weighted
// average, normalizing weights to sum to 1 and rescaling the result so its
// Frobenius norm matches the weighted average of the inputs' norms. This is
// the "weighted_average" blend method.
//
// All assets must share identical (rows, 256) shape; callers that want to
// blend mismatched-shape voices must reshape (e.g. via tiling) beforehand.
func BlendWeighted(assets []*Asset, weights []float64) (*Asset, error) {
	if len(assets) == 0 || len(assets) != len(weights) {
		return nil, fmt.Errorf("%w: %d assets, %d weights", ErrBlendInputs, len(assets), len(weights))
	}
	rows, cols := assets[0].Dims()
	for _, a := range assets[1:] {
		r, c := a.Dims()
		if r != rows || c != cols {
			return nil, fmt.Errorf("%w: %s is (%d,%d), want (%d,%d)", ErrBlendInputs, a.Name, r, c, rows, cols)
		}
	}

	weightSum := 0.0
	for _, w := range weights {
		weightSum += w
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("%w: weights must sum to a positive value", ErrBlendInputs)
	}
	normWeights := make([]float64, len(weights))
	for i, w := range weights {
		normWeights[i] = w / weightSum
	}

	n := rows * cols
	blended := make([]float32, n)
	for i := range assets {
		w := normWeights[i]
		m := assets[i].Matrix
		for j := 0; j < n; j++ {
			blended[j] += float32(w) * m[j]
		}
	}

	targetNorm := 0.0
	for i, a := range assets {
		targetNorm += normWeights[i] * frobeniusNorm(a.Matrix)
	}
	actualNorm := frobeniusNorm(blended)
	if actualNorm > 1e-12 {
		scale := float32(targetNorm / actualNorm)
		for j := range blended {
			blended[j] *= scale
		}
	}

	return &Asset{Rows: rows, Matrix: blended}, nil
}

func frobeniusNorm(v []float32) float64 {
	sumSq := 0.0
	for _, x := range v {
		f := float64(x)
		sumSq += f * f
	}
	return math.Sqrt(sumSq)
}
