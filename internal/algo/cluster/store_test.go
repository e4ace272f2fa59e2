package cluster

import (
	"errors"
	"sync"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClusters() []model.Cluster {
	return []model.Cluster{
		{ID: 0, Generation: "g1", Centroid: model.Embedding{0, 0}, Weights: model.UniformWeights(), Size: 3},
		{ID: 1, Generation: "g1", Centroid: model.Embedding{10, 0}, Weights: model.UniformWeights(), Size: 4},
		{ID: 2, Generation: "g1", Centroid: model.Embedding{0, 10}, Weights: model.UniformWeights(), Size: 5},
	}
}

func TestStore_NearestCluster(t *testing.T) {

	store := NewStore()
	store.ReplaceAll(testClusters(), model.Euclidean)

	type test struct {
		embedding model.Embedding
		id        int
		distance  float64
		err       error
	}

	tests := map[string]test{
		"origin": {
			embedding: model.Embedding{1, 1},
			id:        0,
			distance:  1.4142135623730951,
		},
		"right": {
			embedding: model.Embedding{9, 0},
			id:        1,
			distance:  1,
		},
		"tie-goes-to-first": {
			embedding: model.Embedding{5, 0},
			id:        0,
			distance:  5,
		},
		"wrong-size": {
			embedding: model.Embedding{1, 1, 1},
			err:       model.DimensionErr,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			id, d, err := store.NearestCluster(tt.embedding)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.InDelta(t, tt.distance, d, 1e-9)
			// routing is deterministic
			again, _, _ := store.NearestCluster(tt.embedding)
			assert.Equal(t, id, again)
		})
	}
}

func TestStore_Cosine(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]model.Cluster{
		{ID: 7, Centroid: model.Embedding{1, 0}},
		{ID: 3, Centroid: model.Embedding{0, 1}},
	}, model.Cosine)
	id, d, err := store.NearestCluster(model.Embedding{0, 5})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.InDelta(t, 0, d, 1e-9)
	assert.Equal(t, model.Cosine, store.Metric())
}

func TestStore_Reset(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(testClusters(), model.Euclidean)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, "g1", store.Generation())

	store.Reset()
	assert.Equal(t, 0, store.Len())
	_, _, err := store.NearestCluster(model.Embedding{0, 0})
	assert.True(t, errors.Is(err, model.EmptyStoreErr))
	_, err = store.GetByID(0)
	assert.True(t, errors.Is(err, model.NotFoundErr))
}

func TestStore_GetByID(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(testClusters(), model.Euclidean)

	c, err := store.GetByID(2)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Size)

	// the copy does not leak into the store
	c.Centroid[0] = 100
	c.Weights[0] = 1
	fresh, _ := store.GetByID(2)
	assert.Equal(t, 0.0, fresh.Centroid[0])
	assert.Equal(t, 0.1, fresh.Weights[0])

	_, err = store.GetByID(42)
	assert.True(t, errors.Is(err, model.NotFoundErr))
}

func TestStore_Modify(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(testClusters(), model.Euclidean)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Modify(0, func(c *model.Cluster) error {
				c.Size++
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = store.Modify(1, func(c *model.Cluster) error {
				c.Size++
				return nil
			})
		}()
	}
	wg.Wait()

	c0, _ := store.GetByID(0)
	c1, _ := store.GetByID(1)
	assert.Equal(t, 103, c0.Size)
	assert.Equal(t, 104, c1.Size)

	err := store.Modify(9, func(c *model.Cluster) error { return nil })
	assert.True(t, errors.Is(err, model.NotFoundErr))
}

func TestStore_Persistence(t *testing.T) {
	store := NewStore()
	clusters := testClusters()
	clusters[1].Weights = model.Weights{0.05, 0.55, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05}
	store.ReplaceAll(clusters, model.Cosine)

	exported := store.ExportForPersistence()
	assert.Equal(t, clusters, exported)

	restored := NewStore()
	require.NoError(t, restored.LoadFrom(exported, model.Cosine))
	assert.Equal(t, exported, restored.ExportForPersistence())

	c, err := restored.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, clusters[1].Weights, c.Weights)

	err = restored.LoadFrom([]model.Cluster{{ID: 1}, {ID: 1}}, model.Cosine)
	assert.Error(t, err)
	// a failed load keeps the previous generation
	assert.Equal(t, 3, restored.Len())
}

func TestStore_ReplaceAllWhileReading(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(testClusters(), model.Euclidean)

	other := []model.Cluster{
		{ID: 10, Centroid: model.Embedding{1, 1}},
		{ID: 11, Centroid: model.Embedding{-1, -1}},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if i%2 == 0 {
				store.ReplaceAll(other, model.Euclidean)
			} else {
				store.ReplaceAll(testClusters(), model.Euclidean)
			}
		}
	}()
	for i := 0; i < 100; i++ {
		id, _, err := store.NearestCluster(model.Embedding{1, 1})
		require.NoError(t, err)
		assert.Contains(t, []int{0, 10}, id)
	}
	wg.Wait()
}
