package stats

import (
	"math"
)

// Stats is a set of statistical properties of a stream of numbers.
type Stats struct {
	count          int
	min, max       float64
	mean, dSquared float64
}

// NewStats creates a new Stats.
func NewStats() *Stats {
	return &Stats{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
}

// Push adds another element to the set.
func (s *Stats) Push(v float64) {
	s.count++
	diff := (v - s.mean) / float64(s.count)
	mean := s.mean + diff
	s.dSquared += (v - mean) * (v - s.mean)
	s.mean = mean
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
}

// Avg returns the average value of the set.
func (s Stats) Avg() float64 {
	return s.mean
}

// Count returns the number of elements.
func (s Stats) Count() int {
	return s.count
}

// Min returns the smallest element, or 0 for an empty set.
func (s Stats) Min() float64 {
	if s.count == 0 {
		return 0
	}
	return s.min
}

// Max returns the largest element, or 0 for an empty set.
func (s Stats) Max() float64 {
	if s.count == 0 {
		return 0
	}
	return s.max
}

// StDev is the standard deviation of the set.
func (s Stats) StDev() float64 {
	if s.count == 0 {
		return 0
	}
	return math.Sqrt(s.dSquared / float64(s.count))
}
