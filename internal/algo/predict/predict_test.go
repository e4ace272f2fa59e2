package predict

import (
	"errors"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/algo/cluster"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	trained bool
	calls   int
}

func (m *mockExtractor) Trained() bool {
	return m.trained
}

func (m *mockExtractor) Extract(image model.Image) (model.Embedding, error) {
	m.calls++
	return model.Embedding{image[0], image[1]}, nil
}

func image(x, y float64) model.Image {
	im := model.NewImage()
	im[0] = x
	im[1] = y
	return im
}

func newStore() *cluster.Store {
	store := cluster.NewStore()
	store.ReplaceAll([]model.Cluster{
		{ID: 0, Centroid: model.Embedding{0, 0}, Weights: model.UniformWeights()},
		{ID: 1, Centroid: model.Embedding{1, 1}, Weights: model.Weights{0.05, 0.05, 0.05, 0.55, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05}},
	}, model.Euclidean)
	return store
}

func TestService_Predict(t *testing.T) {

	service, err := NewService(newStore(), 0)
	require.NoError(t, err)

	extractor := &mockExtractor{trained: true}
	service.Use(extractor)
	assert.True(t, service.Ready())

	type test struct {
		image      model.Image
		label      model.Label
		confidence float64
		cluster    int
	}

	tests := map[string]test{
		"uniform-cluster": {
			image:      image(0.1, 0),
			label:      0,
			confidence: 0.1,
			cluster:    0,
		},
		"confident-cluster": {
			image:      image(0.9, 0.8),
			label:      3,
			confidence: 0.55,
			cluster:    1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := service.Predict(tt.image)
			require.NoError(t, err)
			assert.Equal(t, tt.label, p.Label)
			assert.Equal(t, tt.confidence, p.Confidence)
			assert.Equal(t, tt.cluster, p.ClusterID)
			assert.Equal(t, model.Embedding{tt.image[0], tt.image[1]}, p.Embedding)
		})
	}
}

func TestService_Cache(t *testing.T) {
	service, err := NewService(newStore(), 4)
	require.NoError(t, err)
	extractor := &mockExtractor{trained: true}
	service.Use(extractor)

	for i := 0; i < 3; i++ {
		_, err := service.Predict(image(1, 1))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, extractor.calls)

	// a new extractor starts from a clean cache
	other := &mockExtractor{trained: true}
	service.Use(other)
	_, err = service.Predict(image(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, other.calls)

	assert.NotEqual(t, Hash(image(1, 1)), Hash(image(1, 0)))
}

func TestService_NotReady(t *testing.T) {

	type test struct {
		extractor Extractor
		store     *cluster.Store
	}

	tests := map[string]test{
		"no-extractor": {
			store: newStore(),
		},
		"untrained-extractor": {
			extractor: &mockExtractor{},
			store:     newStore(),
		},
		"empty-store": {
			extractor: &mockExtractor{trained: true},
			store:     cluster.NewStore(),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			service, err := NewService(tt.store, 0)
			require.NoError(t, err)
			if tt.extractor != nil {
				service.Use(tt.extractor)
			}
			assert.False(t, service.Ready())
			_, err = service.Predict(image(0, 0))
			assert.True(t, errors.Is(err, model.ModelNotReadyErr))
		})
	}
}
