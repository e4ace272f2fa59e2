package ml

import (
	"sort"

	"github.com/drakos74/hybrid-digits/internal/math"
)

const (
	maxShiftIterations = 300
	// maxSeeds bounds the number of starting points for large batches.
	maxSeeds = 500
)

type mode struct {
	center  []float64
	support int
	seed    int
}

// MeanShift finds the modes of the point density with a flat kernel of the given bandwidth.
// Modes closer than the bandwidth to a stronger mode are merged into it and
// every point is assigned to its nearest mode.
func MeanShift(data [][]float64, bandwidth float64, distance math.DistanceFunc) []int {
	if len(data) == 0 {
		return nil
	}

	step := 1
	if len(data) > maxSeeds {
		step = (len(data) + maxSeeds - 1) / maxSeeds
	}

	modes := make([]mode, 0)
	for s := 0; s < len(data); s += step {
		center := append([]float64{}, data[s]...)
		support := 0
		for it := 0; it < maxShiftIterations; it++ {
			var window [][]float64
			for _, x := range data {
				if distance(x, center) <= bandwidth {
					window = append(window, x)
				}
			}
			support = len(window)
			if support == 0 {
				break
			}
			next, err := math.Mean(window)
			if err != nil {
				break
			}
			shift := math.EuclideanDistance(next, center)
			center = next
			if shift < 1e-3*bandwidth {
				break
			}
		}
		if support > 0 {
			modes = append(modes, mode{center: center, support: support, seed: s})
		}
	}

	// strongest modes first, seed order breaks ties
	sort.SliceStable(modes, func(i, j int) bool {
		return modes[i].support > modes[j].support
	})

	centers := make([][]float64, 0)
	for _, m := range modes {
		if i, d := math.Nearest(m.center, centers, distance); i >= 0 && d <= bandwidth {
			continue
		}
		centers = append(centers, m.center)
	}

	labels := make([]int, len(data))
	if len(centers) == 0 {
		for i := range labels {
			labels[i] = Noise
		}
		return labels
	}
	for i, x := range data {
		labels[i], _ = math.Nearest(x, centers, distance)
	}
	return compact(labels)
}
