package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/dataset"
	"github.com/drakos74/hybrid-digits/internal/metrics"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/session"
	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func TestRender(t *testing.T) {
	image := model.NewImage()
	image.Set(0, 0, 1)
	image.Set(0, 1, 0.5)
	lines := strings.Split(strings.TrimSuffix(render(image), "\n"), "\n")
	require.Len(t, lines, model.ImageSide)
	assert.Len(t, lines[0], model.ImageSide)
	assert.Equal(t, byte('@'), lines[0][0])
	assert.Equal(t, byte('='), lines[0][1])
	assert.Equal(t, byte(' '), lines[1][0])
}

func TestInteract(t *testing.T) {
	s, err := session.New(dataset.NewGlyphs(5), storage.NewKVArchive(storage.NewMemoryStorage(), storage.NewMemoryRegistry()), storage.NewMemoryStorage(), metrics.New())
	require.NoError(t, err)
	cfg := model.DefaultConfig()
	cfg.FeatureExtractor.Architecture = model.Pretrained
	cfg.FeatureExtractor.RealDataCount = 100
	cfg.FeatureExtractor.SyntheticDataCount = 0
	cfg.Clustering.K = 10
	_, err = s.Initialize(context.Background(), cfg)
	require.NoError(t, err)

	in := strings.NewReader(strings.Join([]string{
		"y",
		"n",
		"u",
		"",
		"what",
		"p",
		"v 0 3",
		"v 0 3",
		"v x",
		"s",
		"q",
		"y",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, interact(s, in, &out))

	text := out.String()
	assert.Contains(t, text, "prediction:")
	assert.Contains(t, text, "true label")
	assert.Contains(t, text, "verified\n")
	assert.Contains(t, text, "no pending digit 0")
	assert.Contains(t, text, "usage: v")
	assert.Contains(t, text, `"presented": 4`)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Feedback[model.Yes])
	assert.Equal(t, 1, stats.Feedback[model.No])
	assert.Equal(t, 1, stats.Feedback[model.Verified])
	assert.Equal(t, 1, stats.Feedback[model.Pending])
	assert.Empty(t, s.Pending())
}
