package model

import (
	"fmt"
	"strings"
)

// Architecture is the feature extractor network type.
type Architecture string

const (
	SmallPerceptron Architecture = "small-perceptron"
	SimpleCNN       Architecture = "simple-cnn"
	Pretrained      Architecture = "pretrained"
)

// Algorithm is the clustering family.
type Algorithm string

const (
	Partition Algorithm = "partition"
	Density   Algorithm = "density"
	ModeSeek  Algorithm = "modeseek"
)

// Metric is the distance used for clustering and routing.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// FeatureExtractorConfig configures the extractor and the training batch it learns from.
type FeatureExtractorConfig struct {
	Architecture       Architecture `json:"architecture" yaml:"architecture"`
	EmbeddingSize      int          `json:"embedding_size" yaml:"embedding_size"`
	RealDataCount      int          `json:"real_data_count" yaml:"real_data_count"`
	SyntheticDataCount int          `json:"synthetic_data_count" yaml:"synthetic_data_count"`
	NoiseLevel         float64      `json:"noise_level" yaml:"noise_level"`
	Epochs             int          `json:"epochs" yaml:"epochs"`
	Seed               int64        `json:"seed" yaml:"seed"`
}

// ClusteringConfig configures the clusterer.
// Only the parameters of the selected algorithm are used.
type ClusteringConfig struct {
	Algorithm    Algorithm `json:"algorithm" yaml:"algorithm"`
	K            int       `json:"k" yaml:"k"`
	Eps          float64   `json:"eps" yaml:"eps"`
	MinNeighbors int       `json:"min_neighbors" yaml:"min_neighbors"`
	Bandwidth    float64   `json:"bandwidth" yaml:"bandwidth"`
	Iterations   int       `json:"iterations" yaml:"iterations"`
	Metric       Metric    `json:"metric" yaml:"metric"`
}

// WeightsConfig holds the feedback update rates.
type WeightsConfig struct {
	Alpha     float64 `json:"alpha" yaml:"alpha"`
	Beta      float64 `json:"beta" yaml:"beta"`
	Gamma     float64 `json:"gamma" yaml:"gamma"`
	MinWeight float64 `json:"min_weight" yaml:"min_weight"`
	// NewClusterThreshold is kept with the configuration, nothing reads it yet.
	NewClusterThreshold float64 `json:"new_cluster_threshold" yaml:"new_cluster_threshold"`
}

// SystemConfig is the configuration of a model generation.
type SystemConfig struct {
	FeatureExtractor FeatureExtractorConfig `json:"feature_extractor" yaml:"feature_extractor"`
	Clustering       ClusteringConfig       `json:"clustering" yaml:"clustering"`
	Weights          WeightsConfig          `json:"weights" yaml:"weights"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		FeatureExtractor: FeatureExtractorConfig{
			Architecture:       SmallPerceptron,
			EmbeddingSize:      32,
			RealDataCount:      1000,
			SyntheticDataCount: 500,
			NoiseLevel:         0.5,
			Epochs:             5,
			Seed:               42,
		},
		Clustering: ClusteringConfig{
			Algorithm:    Partition,
			K:            15,
			Eps:          0.8,
			MinNeighbors: 5,
			Bandwidth:    0.5,
			Iterations:   100,
			Metric:       Cosine,
		},
		Weights: WeightsConfig{
			Alpha:               0.2,
			Beta:                0.5,
			Gamma:               0.5,
			MinWeight:           0.05,
			NewClusterThreshold: 1.2,
		},
	}
}

type violations []string

func (v *violations) check(ok bool, format string, args ...interface{}) {
	if !ok {
		*v = append(*v, fmt.Sprintf(format, args...))
	}
}

func within(v, min, max float64) bool {
	return v >= min && v <= max
}

// Validate checks every option against its allowed range.
func (c SystemConfig) Validate() error {
	var v violations

	fe := c.FeatureExtractor
	switch fe.Architecture {
	case SmallPerceptron, SimpleCNN, Pretrained:
	default:
		v.check(false, "unknown architecture '%s'", fe.Architecture)
	}
	v.check(fe.EmbeddingSize >= 32 && fe.EmbeddingSize <= 512, "embedding size %d not in [32,512]", fe.EmbeddingSize)
	v.check(fe.RealDataCount >= 1, "real data count %d must be positive", fe.RealDataCount)
	v.check(fe.SyntheticDataCount >= 0, "synthetic data count %d must not be negative", fe.SyntheticDataCount)
	v.check(within(fe.NoiseLevel, 0.1, 0.9), "noise level %v not in [0.1,0.9]", fe.NoiseLevel)
	v.check(fe.Epochs >= 1 && fe.Epochs <= 50, "epochs %d not in [1,50]", fe.Epochs)

	cl := c.Clustering
	switch cl.Algorithm {
	case Partition:
		v.check(cl.K >= 1, "k %d must be positive", cl.K)
		v.check(cl.Iterations >= 1, "iterations %d must be positive", cl.Iterations)
	case Density:
		v.check(cl.Eps > 0, "eps %v must be positive", cl.Eps)
		v.check(cl.MinNeighbors >= 1, "min neighbors %d must be positive", cl.MinNeighbors)
	case ModeSeek:
		v.check(cl.Bandwidth > 0, "bandwidth %v must be positive", cl.Bandwidth)
	default:
		v.check(false, "unknown clustering algorithm '%s'", cl.Algorithm)
	}
	switch cl.Metric {
	case Cosine, Euclidean:
	default:
		v.check(false, "unknown metric '%s'", cl.Metric)
	}

	w := c.Weights
	v.check(within(w.Alpha, 0.01, 0.5), "alpha %v not in [0.01,0.5]", w.Alpha)
	v.check(within(w.Beta, 0.05, 1.0), "beta %v not in [0.05,1.0]", w.Beta)
	v.check(within(w.Gamma, 0.1, 0.95), "gamma %v not in [0.1,0.95]", w.Gamma)
	v.check(within(w.MinWeight, 0.001, 0.1), "min weight %v not in [0.001,0.1]", w.MinWeight)
	v.check(within(w.NewClusterThreshold, 0.5, 3.0), "new cluster threshold %v not in [0.5,3.0]", w.NewClusterThreshold)

	if len(v) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(v, "; "), ConfigInvalidErr)
	}
	return nil
}
