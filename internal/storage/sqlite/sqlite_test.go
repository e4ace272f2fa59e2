package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Archive {
	a, err := Open(filepath.Join(t.TempDir(), "hybrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func sample(id string) model.Sample {
	img := model.NewImage()
	img.Set(10, 12, 0.3)
	img.Set(27, 27, 1)
	ts := time.Date(2024, 5, 6, 7, 8, 9, 1000, time.UTC)
	return model.Sample{
		ID:             id,
		Generation:     "g",
		Image:          img,
		PredictedLabel: 2,
		Confidence:     0.4,
		ClusterID:      3,
		Feedback:       model.Pending,
		TrueLabel:      7,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
}

func TestArchive_Config(t *testing.T) {
	a := open(t)

	_, err := a.LoadConfig()
	assert.True(t, errors.Is(err, storage.NotFoundErr))

	cfg := model.DefaultConfig()
	require.NoError(t, a.SaveConfig(cfg))
	cfg.Clustering.Algorithm = model.Density
	cfg.FeatureExtractor.EmbeddingSize = 64
	require.NoError(t, a.SaveConfig(cfg))

	loaded, err := a.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestArchive_Clusters(t *testing.T) {
	a := open(t)

	w := model.UniformWeights()
	w[0] = 0.05
	w[9] = 0.15
	clusters := []model.Cluster{
		{ID: 0, Generation: "g", Centroid: model.Embedding{0.1, 1.0 / 3.0, -2}, Weights: model.UniformWeights(), Size: 3, Params: model.DefaultConfig().Clustering},
		{ID: 1, Generation: "g", Centroid: model.Embedding{0.7, 0.2, 1e-9}, Weights: w, Size: 5, Params: model.DefaultConfig().Clustering},
	}
	require.NoError(t, a.SaveClusters(clusters))

	loaded, err := a.LoadClusters()
	require.NoError(t, err)
	assert.Equal(t, clusters, loaded)

	require.NoError(t, a.SaveClusters(clusters[1:]))
	loaded, err = a.LoadClusters()
	require.NoError(t, err)
	assert.Equal(t, clusters[1:], loaded)
}

func TestArchive_Samples(t *testing.T) {
	a := open(t)

	require.NoError(t, a.SaveSample(sample("a")))
	require.NoError(t, a.SaveSample(sample("b")))

	label := model.Label(7)
	s := sample("a")
	s.Feedback = model.Verified
	s.VerifiedLabel = &label
	s.UpdatedAt = s.UpdatedAt.Add(time.Minute)
	require.NoError(t, a.SaveSample(s))

	samples, err := a.LoadSamples()
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, s, samples[0])
	assert.Equal(t, sample("b"), samples[1])
}

func TestArchive_ResetAllKeepsStatistics(t *testing.T) {
	a := open(t)

	require.NoError(t, a.SaveConfig(model.DefaultConfig()))
	require.NoError(t, a.SaveClusters([]model.Cluster{{ID: 0, Centroid: model.Embedding{1}, Weights: model.UniformWeights()}}))
	require.NoError(t, a.SaveSample(sample("a")))
	require.NoError(t, a.AppendSnapshot(model.Snapshot{Time: time.Now(), Generation: "g", Accuracy: 0.5, Feedback: map[model.Feedback]int{model.Yes: 1}}))

	require.NoError(t, a.ResetAll())

	_, err := a.LoadConfig()
	assert.True(t, errors.Is(err, storage.NotFoundErr))
	clusters, err := a.LoadClusters()
	require.NoError(t, err)
	assert.Empty(t, clusters)
	samples, err := a.LoadSamples()
	require.NoError(t, err)
	assert.Empty(t, samples)

	snapshots, err := a.Snapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 0.5, snapshots[0].Accuracy)
	assert.Equal(t, 1, snapshots[0].Feedback[model.Yes])
}

func TestArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hybrid.db")
	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveSample(sample("a")))
	require.NoError(t, a.Close())

	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()
	samples, err := a.LoadSamples()
	require.NoError(t, err)
	assert.Equal(t, []model.Sample{sample("a")}, samples)
}
