package model

import (
	"math"
	"strconv"
)

// Labels is the size of the digit alphabet.
const Labels = 10

// Label is a digit label 0..9.
type Label int

// Valid checks if the label belongs to the digit alphabet.
func (l Label) Valid() bool {
	return l >= 0 && l < Labels
}

func (l Label) String() string {
	return strconv.Itoa(int(l))
}

// Weights is the per-label probability distribution of a cluster.
type Weights [Labels]float64

// UniformWeights returns the distribution every cluster starts with.
func UniformWeights() Weights {
	var w Weights
	for i := range w {
		w[i] = 1.0 / Labels
	}
	return w
}

// Argmax returns the label with the highest weight.
// Ties resolve to the lowest digit.
func (w Weights) Argmax() Label {
	best := 0
	for i := 1; i < Labels; i++ {
		if w[i] > w[best] {
			best = i
		}
	}
	return Label(best)
}

// Sum returns the total mass of the distribution.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Min returns the smallest weight.
func (w Weights) Min() float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Entropy is the shannon entropy of the distribution in bits.
func (w Weights) Entropy() float64 {
	var h float64
	for _, v := range w {
		if v > 0 {
			h -= v * math.Log2(v)
		}
	}
	return h
}
