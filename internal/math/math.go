package math

import (
	"fmt"
	"math"

	"github.com/drakos74/hybrid-digits/internal/model"
	"gonum.org/v1/gonum/floats"
)

// DistanceFunc computes the distance between two vectors of equal length.
type DistanceFunc func(a, b []float64) float64

// Distance returns the distance function for the given metric.
// Unknown metrics fall back to the euclidean distance.
func Distance(metric model.Metric) DistanceFunc {
	switch metric {
	case model.Cosine:
		return CosineDistance
	default:
		return EuclideanDistance
	}
}

// EuclideanDistance is the L2 norm of the difference.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// CosineDistance is 1 minus the cosine similarity.
// A zero vector has no direction, so its distance to anything is 1.
func CosineDistance(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	sim := floats.Dot(a, b) / (na * nb)
	// rounding can push the similarity slightly outside [-1,1]
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}

// Mean returns the arithmetic mean of the given vectors.
func Mean(vv [][]float64) ([]float64, error) {
	if len(vv) == 0 {
		return nil, fmt.Errorf("cannot average an empty set")
	}
	dim := len(vv[0])
	m := make([]float64, dim)
	for _, v := range vv {
		if len(v) != dim {
			return nil, fmt.Errorf("vector of size %d in set of size %d: %w", len(v), dim, model.DimensionErr)
		}
		floats.Add(m, v)
	}
	floats.Scale(1/float64(len(vv)), m)
	return m, nil
}

// Nearest returns the index of the closest candidate and its distance.
// The first candidate wins ties. It returns -1 for no candidates.
func Nearest(x []float64, candidates [][]float64, d DistanceFunc) (int, float64) {
	best := -1
	bestDistance := math.Inf(1)
	for i, c := range candidates {
		if dd := d(x, c); dd < bestDistance {
			best = i
			bestDistance = dd
		}
	}
	return best, bestDistance
}

// Finite reports whether every component of x is a finite number.
func Finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the given vectors.
func Copy(vv [][]float64) [][]float64 {
	cc := make([][]float64, len(vv))
	for i, v := range vv {
		cc[i] = make([]float64, len(v))
		copy(cc[i], v)
	}
	return cc
}

// Clip bounds the value within [min,max].
func Clip(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
