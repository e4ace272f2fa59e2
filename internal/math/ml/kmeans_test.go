package ml

import (
	gomath "math"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs creates two well separated groups of points around (-10,-10) and (10,10).
func blobs() [][]float64 {
	var double [][]float64
	for i := -1.0; i <= 1; i += 0.5 {
		for j := -1.0; j <= 1; j += 0.5 {
			double = append(double, []float64{-10 + i, -10 + j})
		}
	}
	for i := -1.0; i <= 1; i += 0.5 {
		for j := -1.0; j <= 1; j += 0.5 {
			double = append(double, []float64{10 + i, 10 + j})
		}
	}
	return double
}

func assertTwoGroups(t *testing.T, labels []int, n int) {
	require.Equal(t, 2*n, len(labels))
	for i := 1; i < n; i++ {
		assert.Equal(t, labels[0], labels[i])
		assert.Equal(t, labels[n], labels[n+i])
	}
	assert.NotEqual(t, labels[0], labels[n])
}

func TestKMeans(t *testing.T) {
	data := blobs()
	labels, err := KMeans(data, 2, 30)
	require.NoError(t, err)
	assertTwoGroups(t, labels, 25)
	// the input is left untouched
	assert.Equal(t, []float64{-11, -11}, data[0])
}

func TestKMeans_Invalid(t *testing.T) {
	_, err := KMeans([][]float64{{0, 0}}, 2, 10)
	assert.Error(t, err)
	_, err = KMeans([][]float64{{0, 0}}, 0, 10)
	assert.Error(t, err)
}

func TestLloyd_NonFinite(t *testing.T) {
	data := [][]float64{{1, 1}, {gomath.NaN(), 0}, {2, 2}}
	var labels []int
	assert.NotPanics(t, func() {
		labels = Lloyd(data, 3, 10)
	})
	require.Equal(t, 3, len(labels))
	for _, l := range labels {
		assert.True(t, l >= 0)
	}
}

func TestLloyd(t *testing.T) {

	type test struct {
		data   [][]float64
		k      int
		groups int
	}

	tests := map[string]test{
		"blobs": {
			data:   blobs(),
			k:      2,
			groups: 2,
		},
		"duplicates": {
			data:   [][]float64{{0, 0}, {0, 0}, {0, 0}},
			k:      3,
			groups: 1,
		},
		"more-groups-than-points": {
			data:   [][]float64{{0, 0}, {1, 1}},
			k:      10,
			groups: 2,
		},
		"single-point": {
			data:   [][]float64{{3, 4}},
			k:      10,
			groups: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			labels := Lloyd(tt.data, tt.k, 100)
			assert.Equal(t, len(tt.data), len(labels))
			distinct := make(map[int]bool)
			for _, l := range labels {
				assert.True(t, l >= 0)
				distinct[l] = true
			}
			assert.Equal(t, tt.groups, len(distinct))
			// deterministic
			assert.Equal(t, labels, Lloyd(tt.data, tt.k, 100))
		})
	}
}

func TestDBSCAN(t *testing.T) {
	data := blobs()
	data = append(data, []float64{0, 0})
	labels := DBSCAN(data, 0.6, 3, math.EuclideanDistance)
	assertTwoGroups(t, labels[:50], 25)
	assert.Equal(t, Noise, labels[50])

	allNoise := DBSCAN(data, 0.01, 2, math.EuclideanDistance)
	for _, l := range allNoise {
		assert.Equal(t, Noise, l)
	}
}

func TestMeanShift(t *testing.T) {
	labels := MeanShift(blobs(), 3, math.EuclideanDistance)
	assertTwoGroups(t, labels, 25)
	assert.Equal(t, 0, labels[0])

	single := MeanShift([][]float64{{1, 1}, {1, 1}}, 0.5, math.EuclideanDistance)
	assert.Equal(t, []int{0, 0}, single)
}
