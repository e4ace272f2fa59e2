package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Shipped(t *testing.T) {
	cfg, err := Load("hybrid.json")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoad(t *testing.T) {

	tests := map[string]struct {
		file    string
		content string
		check   func(t *testing.T, cfg model.SystemConfig)
		err     error
	}{
		"yaml-partial": {
			file: "config.yaml",
			content: `
feature_extractor:
  architecture: simple-cnn
  embedding_size: 64
clustering:
  algorithm: density
  eps: 0.3
`,
			check: func(t *testing.T, cfg model.SystemConfig) {
				assert.Equal(t, model.SimpleCNN, cfg.FeatureExtractor.Architecture)
				assert.Equal(t, 64, cfg.FeatureExtractor.EmbeddingSize)
				assert.Equal(t, model.Density, cfg.Clustering.Algorithm)
				assert.Equal(t, 0.3, cfg.Clustering.Eps)
				// defaults
				assert.Equal(t, 1000, cfg.FeatureExtractor.RealDataCount)
				assert.Equal(t, 0.2, cfg.Weights.Alpha)
			},
		},
		"json-partial": {
			file:    "config.json",
			content: `{"weights": {"alpha": 0.4}}`,
			check: func(t *testing.T, cfg model.SystemConfig) {
				assert.Equal(t, 0.4, cfg.Weights.Alpha)
				assert.Equal(t, model.Partition, cfg.Clustering.Algorithm)
			},
		},
		"invalid-value": {
			file:    "config.yml",
			content: "weights:\n  min_weight: 0.5\n",
			err:     model.ConfigInvalidErr,
		},
		"malformed": {
			file:    "config.json",
			content: `{"weights": `,
			err:     model.ConfigInvalidErr,
		},
		"unknown-format": {
			file:    "config.toml",
			content: `alpha = 1`,
			err:     model.ConfigInvalidErr,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(file, []byte(tt.content), 0644))
			cfg, err := Load(file)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "%v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
