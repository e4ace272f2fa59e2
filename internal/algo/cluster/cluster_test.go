package cluster

import (
	"errors"
	gomath "math"
	"math/rand"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func embeddings(points ...[]float64) []model.Embedding {
	ee := make([]model.Embedding, len(points))
	for i, p := range points {
		ee[i] = p
	}
	return ee
}

func groups(rng *rand.Rand, centers [][]float64, n int, spread float64) []model.Embedding {
	ee := make([]model.Embedding, 0)
	for _, c := range centers {
		for i := 0; i < n; i++ {
			e := make(model.Embedding, len(c))
			for j := range c {
				e[j] = c[j] + spread*(rng.Float64()-0.5)
			}
			ee = append(ee, e)
		}
	}
	return ee
}

func TestCluster_SinglePoint(t *testing.T) {
	result, err := Cluster(embeddings([]float64{0, 0}, []float64{0, 0}, []float64{0, 0}), model.ClusteringConfig{
		Algorithm:  model.Partition,
		K:          1,
		Iterations: 10,
		Metric:     model.Euclidean,
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(result.Clusters))
	c := result.Clusters[0]
	assert.Equal(t, model.Embedding{0, 0}, c.Centroid)
	assert.Equal(t, 3, c.Size)
	for _, w := range c.Weights {
		assert.Equal(t, 0.1, w)
	}
}

func TestCluster_Algorithms(t *testing.T) {

	rng := rand.New(rand.NewSource(1))
	data := groups(rng, [][]float64{{-5, -5, 0}, {5, 5, 0}, {5, -5, 5}}, 20, 0.5)

	type test struct {
		cfg      model.ClusteringConfig
		clusters int
		fallback bool
	}

	tests := map[string]test{
		"partition": {
			cfg: model.ClusteringConfig{
				Algorithm:  model.Partition,
				K:          3,
				Iterations: 50,
				Metric:     model.Euclidean,
			},
			clusters: 3,
		},
		"density": {
			cfg: model.ClusteringConfig{
				Algorithm:    model.Density,
				Eps:          1,
				MinNeighbors: 3,
				Metric:       model.Euclidean,
			},
			clusters: 3,
		},
		"modeseek": {
			cfg: model.ClusteringConfig{
				Algorithm: model.ModeSeek,
				Bandwidth: 2,
				Metric:    model.Euclidean,
			},
			clusters: 3,
		},
		"density-all-noise": {
			cfg: model.ClusteringConfig{
				Algorithm:    model.Density,
				Eps:          0.0001,
				MinNeighbors: 5,
				Metric:       model.Euclidean,
			},
			clusters: 10,
			fallback: true,
		},
		"partition-too-many": {
			cfg: model.ClusteringConfig{
				Algorithm:  model.Partition,
				K:          100,
				Iterations: 50,
				Metric:     model.Cosine,
			},
			clusters: 10,
			fallback: true,
		},
		"unknown-algorithm": {
			cfg: model.ClusteringConfig{
				Algorithm: "spectral",
				Metric:    model.Euclidean,
			},
			clusters: 10,
			fallback: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := Cluster(data, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.clusters, len(result.Clusters))
			assert.Equal(t, tt.fallback, result.Fallback)
			if tt.fallback {
				assert.True(t, errors.Is(result.Cause, model.ClusteringFailedErr))
				assert.Equal(t, model.Partition, result.Clusters[0].Params.Algorithm)
			} else {
				assert.NoError(t, result.Cause)
			}
			total := result.Noise
			for i, c := range result.Clusters {
				assert.Equal(t, i, c.ID)
				assert.Equal(t, model.UniformWeights(), c.Weights)
				assert.NotEmpty(t, c.Generation)
				assert.Equal(t, tt.cfg.Metric, c.Params.Metric)
				total += c.Size
			}
			assert.Equal(t, len(data), total)
		})
	}
}

func TestCluster_FallbackGuarantee(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for n := 1; n <= 12; n++ {
		data := groups(rng, [][]float64{{0, 0}}, n, 10)
		result, err := Cluster(data, model.ClusteringConfig{
			Algorithm:    model.Density,
			Eps:          1e-9,
			MinNeighbors: 2,
			Metric:       model.Cosine,
		})
		require.NoError(t, err)
		assert.True(t, len(result.Clusters) >= 1)
		assert.True(t, len(result.Clusters) <= FallbackClusters)
	}
}

func TestCluster_Invalid(t *testing.T) {
	_, err := Cluster(nil, model.DefaultConfig().Clustering)
	assert.Error(t, err)

	_, err = Cluster(embeddings([]float64{0, 0}, []float64{0}), model.DefaultConfig().Clustering)
	assert.True(t, errors.Is(err, model.DimensionErr))

	density := model.ClusteringConfig{
		Algorithm:    model.Density,
		Eps:          0.1,
		MinNeighbors: 5,
		Metric:       model.Euclidean,
	}
	tests := map[string][]model.Embedding{
		"nan-first":  embeddings([]float64{gomath.NaN(), 0}, []float64{1, 1}, []float64{2, 2}),
		"nan-middle": embeddings([]float64{1, 1}, []float64{gomath.NaN(), 0}, []float64{2, 2}),
		"inf":        embeddings([]float64{1, 1}, []float64{2, gomath.Inf(-1)}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Cluster(data, density)
				assert.True(t, errors.Is(err, model.NonFiniteErr))
			})
		})
	}
}

func TestCluster_NoiseLeftOutOfCentroids(t *testing.T) {
	data := embeddings(
		[]float64{0, 0},
		[]float64{0.1, 0},
		[]float64{0, 0.1},
		[]float64{0.1, 0.1},
		[]float64{0.05, 0.05},
		[]float64{0.05, 0},
		[]float64{50, 50},
	)
	result, err := Cluster(data, model.ClusteringConfig{
		Algorithm:    model.Density,
		Eps:          0.5,
		MinNeighbors: 3,
		Metric:       model.Euclidean,
	})
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, 1, result.Noise)
	require.Equal(t, 1, len(result.Clusters))
	c := result.Clusters[0]
	assert.Equal(t, 6, c.Size)
	assert.InDelta(t, 0.3/6, c.Centroid[0], 1e-12)
	assert.InDelta(t, 0.25/6, c.Centroid[1], 1e-12)
}
