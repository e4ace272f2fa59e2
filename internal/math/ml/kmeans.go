package ml

import (
	"fmt"
	"io"

	"github.com/cdipaolo/goml/cluster"
	"github.com/drakos74/hybrid-digits/internal/math"
)

// KMeans partitions the data into k groups with the goml k-means implementation.
// It returns the group index of every point.
func KMeans(data [][]float64, k, iterations int) (labels []int, err error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive but was %d", k)
	}
	if k > len(data) {
		return nil, fmt.Errorf("cannot create %d clusters from %d points", k, len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			labels = nil
			err = fmt.Errorf("k-means panicked: %v", r)
		}
	}()
	// goml keeps references to the training rows for its centroids
	model := cluster.NewKMeans(k, iterations, math.Copy(data))
	model.Output = io.Discard
	if err := model.Learn(); err != nil {
		return nil, fmt.Errorf("could not train k-means: %w", err)
	}
	guesses := model.Guesses()
	if len(guesses) != len(data) {
		return nil, fmt.Errorf("could not align guesses with data [ %d | %d ]", len(guesses), len(data))
	}
	return guesses, nil
}
