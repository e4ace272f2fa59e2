package ml

import (
	"github.com/drakos74/hybrid-digits/internal/math"
)

// Lloyd is a deterministic k-means.
// Seeds are picked farthest-first starting from the first point,
// so the same data always gives the same partition.
// Groups that end up without points are dropped and the labels compacted.
func Lloyd(data [][]float64, k, iterations int) []int {
	n := len(data)
	if n == 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	if iterations < 1 {
		iterations = 1
	}

	centroids := seeds(data, k)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for it := 0; it < iterations; it++ {
		changed := false
		for i, x := range data {
			c, _ := math.Nearest(x, centroids, math.EuclideanDistance)
			if c < 0 {
				c = 0
			}
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		groups := make([][][]float64, len(centroids))
		for i, l := range labels {
			groups[l] = append(groups[l], data[i])
		}
		for c, g := range groups {
			if len(g) == 0 {
				continue
			}
			m, err := math.Mean(g)
			if err == nil {
				centroids[c] = m
			}
		}
	}

	return compact(labels)
}

func seeds(data [][]float64, k int) [][]float64 {
	centroids := [][]float64{append([]float64{}, data[0]...)}
	closest := make([]float64, len(data))
	for i, x := range data {
		closest[i] = math.EuclideanDistance(x, data[0])
	}
	for len(centroids) < k {
		far := 0
		for i, d := range closest {
			if d > closest[far] {
				far = i
			}
		}
		c := append([]float64{}, data[far]...)
		centroids = append(centroids, c)
		for i, x := range data {
			if d := math.EuclideanDistance(x, c); d < closest[i] {
				closest[i] = d
			}
		}
	}
	return centroids
}

// compact renumbers the non-negative labels to 0..m-1 keeping their order.
// Negative labels stay as they are.
func compact(labels []int) []int {
	index := make(map[int]int)
	next := 0
	out := make([]int, len(labels))
	for i, l := range labels {
		if l < 0 {
			out[i] = l
			continue
		}
		if _, ok := index[l]; !ok {
			index[l] = next
			next++
		}
		out[i] = index[l]
	}
	return out
}
