package cluster

import (
	"fmt"

	"github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/math/ml"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// FallbackClusters is the upper bound of clusters the fallback partition creates.
	FallbackClusters   = 10
	fallbackIterations = 100
)

// Result is the outcome of a clustering run.
type Result struct {
	Clusters []model.Cluster
	// Fallback is set when the configured algorithm failed and the fallback partition was used.
	Fallback bool
	// Noise is the number of embeddings left out of every cluster.
	Noise int
	// Cause is the failure of the configured algorithm, if any.
	Cause error
}

// Cluster groups the embeddings with the configured algorithm.
// Every cluster starts with a uniform label distribution.
// If the configured algorithm fails or finds no cluster, a deterministic
// partition into min(10, N) clusters is used instead, so the result
// always holds at least one cluster.
func Cluster(embeddings []model.Embedding, cfg model.ClusteringConfig) (Result, error) {
	if len(embeddings) == 0 {
		return Result{}, fmt.Errorf("no embeddings to cluster")
	}
	dim := len(embeddings[0])
	data := make([][]float64, len(embeddings))
	for i, e := range embeddings {
		if len(e) != dim {
			return Result{}, fmt.Errorf("embedding %d has size %d instead of %d: %w", i, len(e), dim, model.DimensionErr)
		}
		if !math.Finite(e) {
			return Result{}, fmt.Errorf("embedding %d: %w", i, model.NonFiniteErr)
		}
		data[i] = e
	}

	generation := uuid.New().String()

	labels, err := primary(data, cfg)
	if err == nil {
		expected := 0
		if cfg.Algorithm == model.Partition {
			expected = cfg.K
		}
		clusters, noise, buildErr := build(data, labels, expected, cfg, generation)
		if buildErr == nil {
			log.Info().
				Str("algorithm", string(cfg.Algorithm)).
				Str("metric", string(cfg.Metric)).
				Int("embeddings", len(data)).
				Int("clusters", len(clusters)).
				Int("noise", noise).
				Msg("clustered embeddings")
			return Result{
				Clusters: clusters,
				Noise:    noise,
			}, nil
		}
		err = buildErr
	}

	cause := fmt.Errorf("%s clustering: %v: %w", cfg.Algorithm, err, model.ClusteringFailedErr)

	k := FallbackClusters
	if len(data) < k {
		k = len(data)
	}
	params := model.ClusteringConfig{
		Algorithm:  model.Partition,
		K:          k,
		Iterations: fallbackIterations,
		Metric:     cfg.Metric,
	}
	clusters, _, err := build(data, ml.Lloyd(data, k, fallbackIterations), 0, params, generation)
	if err != nil {
		return Result{}, fmt.Errorf("fallback partition failed after %v: %w", cause, err)
	}

	log.Warn().
		Err(cause).
		Int("embeddings", len(data)).
		Int("clusters", len(clusters)).
		Msg("using fallback partition")

	return Result{
		Clusters: clusters,
		Fallback: true,
		Cause:    cause,
	}, nil
}

func primary(data [][]float64, cfg model.ClusteringConfig) ([]int, error) {
	switch cfg.Algorithm {
	case model.Partition:
		iterations := cfg.Iterations
		if iterations < 1 {
			iterations = fallbackIterations
		}
		return ml.KMeans(data, cfg.K, iterations)
	case model.Density:
		if cfg.Eps <= 0 || cfg.MinNeighbors < 1 {
			return nil, fmt.Errorf("invalid density parameters eps=%v min-neighbors=%d", cfg.Eps, cfg.MinNeighbors)
		}
		return ml.DBSCAN(data, cfg.Eps, cfg.MinNeighbors, math.Distance(cfg.Metric)), nil
	case model.ModeSeek:
		if cfg.Bandwidth <= 0 {
			return nil, fmt.Errorf("invalid bandwidth %v", cfg.Bandwidth)
		}
		return ml.MeanShift(data, cfg.Bandwidth, math.Distance(cfg.Metric)), nil
	}
	return nil, fmt.Errorf("unknown algorithm '%s'", cfg.Algorithm)
}

// build creates one cluster per non-negative label, in label order.
// If expected is positive, exactly that many non-empty groups are required.
func build(data [][]float64, labels []int, expected int, params model.ClusteringConfig, generation string) ([]model.Cluster, int, error) {
	if len(labels) != len(data) {
		return nil, 0, fmt.Errorf("got %d labels for %d embeddings", len(labels), len(data))
	}
	max := -1
	noise := 0
	for _, l := range labels {
		if l < 0 {
			noise++
		} else if l > max {
			max = l
		}
	}
	if max < 0 {
		return nil, noise, fmt.Errorf("all %d embeddings classified as noise", noise)
	}
	groups := make([][][]float64, max+1)
	for i, l := range labels {
		if l >= 0 {
			groups[l] = append(groups[l], data[i])
		}
	}
	if expected > 0 && len(groups) != expected {
		return nil, noise, fmt.Errorf("expected %d clusters but found %d", expected, len(groups))
	}

	clusters := make([]model.Cluster, 0, len(groups))
	for l, g := range groups {
		if len(g) == 0 {
			if expected > 0 {
				return nil, noise, fmt.Errorf("cluster %d is empty", l)
			}
			continue
		}
		centroid, err := math.Mean(g)
		if err != nil {
			return nil, noise, fmt.Errorf("could not compute centroid for cluster %d: %w", l, err)
		}
		clusters = append(clusters, model.Cluster{
			ID:         len(clusters),
			Generation: generation,
			Centroid:   centroid,
			Weights:    model.UniformWeights(),
			Size:       len(g),
			Params:     params,
		})
	}
	return clusters, noise, nil
}
