package ml

import (
	"github.com/drakos74/hybrid-digits/internal/math"
)

// Noise is the label of points that belong to no group.
const Noise = -1

const unvisited = -2

// DBSCAN groups points that are densely packed together.
// A point is a core point when at least minNeighbors points, itself included,
// lie within eps of it. Points reachable from no core point are labelled Noise.
func DBSCAN(data [][]float64, eps float64, minNeighbors int, distance math.DistanceFunc) []int {
	labels := make([]int, len(data))
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := range data {
		if labels[i] != unvisited {
			continue
		}
		neighbors := regionQuery(data, i, eps, distance)
		if len(neighbors) < minNeighbors {
			labels[i] = Noise
			continue
		}
		labels[i] = cluster
		// expand the cluster over the density-reachable points
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == Noise {
				// border point
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if nn := regionQuery(data, j, eps, distance); len(nn) >= minNeighbors {
				queue = append(queue, nn...)
			}
		}
		cluster++
	}
	return labels
}

func regionQuery(data [][]float64, i int, eps float64, distance math.DistanceFunc) []int {
	var neighbors []int
	for j := range data {
		if distance(data[i], data[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
