package math

import (
	"errors"
	"math"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {

	type test struct {
		metric model.Metric
		a, b   []float64
		d      float64
	}

	tests := map[string]test{
		"euclidean": {
			metric: model.Euclidean,
			a:      []float64{0, 0},
			b:      []float64{3, 4},
			d:      5,
		},
		"cosine-same-direction": {
			metric: model.Cosine,
			a:      []float64{1, 1},
			b:      []float64{3, 3},
			d:      0,
		},
		"cosine-orthogonal": {
			metric: model.Cosine,
			a:      []float64{1, 0},
			b:      []float64{0, 2},
			d:      1,
		},
		"cosine-opposite": {
			metric: model.Cosine,
			a:      []float64{1, 0},
			b:      []float64{-1, 0},
			d:      2,
		},
		"cosine-zero-vector": {
			metric: model.Cosine,
			a:      []float64{0, 0},
			b:      []float64{1, 2},
			d:      1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.d, Distance(tt.metric)(tt.a, tt.b), 1e-9)
		})
	}
}

func TestMean(t *testing.T) {
	m, err := Mean([][]float64{{0, 0}, {2, 4}, {4, 8}})
	assert.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, m)

	_, err = Mean([][]float64{{0, 0}, {1}})
	assert.True(t, errors.Is(err, model.DimensionErr))

	_, err = Mean(nil)
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	candidates := [][]float64{{0, 0}, {10, 10}, {0, 0}}
	i, d := Nearest([]float64{1, 1}, candidates, EuclideanDistance)
	assert.Equal(t, 0, i)
	assert.InDelta(t, math.Sqrt2, d, 1e-9)

	i, _ = Nearest([]float64{1, 1}, nil, EuclideanDistance)
	assert.Equal(t, -1, i)
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float64{0, -1, 1e300}))
	assert.True(t, Finite(nil))
	assert.False(t, Finite([]float64{0, math.NaN()}))
	assert.False(t, Finite([]float64{math.Inf(1)}))
}
