package cluster

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/model"
)

type entry struct {
	mutex   sync.RWMutex
	cluster model.Cluster
}

// generation is an immutable set of clusters.
// Only the weights behind each entry lock change after creation.
type generation struct {
	id        string
	metric    model.Metric
	distance  math.DistanceFunc
	entries   []*entry
	centroids [][]float64
	index     map[int]*entry
}

func newGeneration(clusters []model.Cluster, metric model.Metric) *generation {
	g := &generation{
		metric:    metric,
		distance:  math.Distance(metric),
		entries:   make([]*entry, len(clusters)),
		centroids: make([][]float64, len(clusters)),
		index:     make(map[int]*entry, len(clusters)),
	}
	for i, c := range clusters {
		e := &entry{cluster: c.Copy()}
		g.entries[i] = e
		g.centroids[i] = e.cluster.Centroid
		g.index[c.ID] = e
		if g.id == "" {
			g.id = c.Generation
		}
	}
	return g
}

// Store holds the active generation of clusters.
// Replacing the generation is atomic, readers see either the old or the new one.
type Store struct {
	current atomic.Pointer[generation]
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// ReplaceAll swaps in a new generation of clusters.
func (s *Store) ReplaceAll(clusters []model.Cluster, metric model.Metric) {
	s.current.Store(newGeneration(clusters, metric))
}

// Reset discards all clusters.
func (s *Store) Reset() {
	s.ReplaceAll(nil, model.Euclidean)
}

// Len returns the number of clusters in the active generation.
func (s *Store) Len() int {
	return len(s.current.Load().entries)
}

// Generation returns the id of the active generation.
func (s *Store) Generation() string {
	return s.current.Load().id
}

// Metric returns the distance metric of the active generation.
func (s *Store) Metric() model.Metric {
	return s.current.Load().metric
}

// NearestCluster returns the cluster closest to the embedding.
// The first cluster wins ties.
func (s *Store) NearestCluster(embedding model.Embedding) (int, float64, error) {
	g := s.current.Load()
	if len(g.entries) == 0 {
		return model.NoCluster, 0, fmt.Errorf("no clusters loaded: %w", model.EmptyStoreErr)
	}
	if dim := len(g.centroids[0]); len(embedding) != dim {
		return model.NoCluster, 0, fmt.Errorf("embedding of size %d for centroids of size %d: %w", len(embedding), dim, model.DimensionErr)
	}
	i, d := math.Nearest(embedding, g.centroids, g.distance)
	if i < 0 {
		// only when every distance is NaN
		return model.NoCluster, 0, fmt.Errorf("no comparable cluster for embedding: %w", model.NotFoundErr)
	}
	return g.entries[i].cluster.ID, d, nil
}

// GetByID returns a copy of the cluster with the given id.
func (s *Store) GetByID(id int) (model.Cluster, error) {
	e, ok := s.current.Load().index[id]
	if !ok {
		return model.Cluster{}, fmt.Errorf("cluster %d: %w", id, model.NotFoundErr)
	}
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cluster.Copy(), nil
}

// Modify applies fn to the live cluster while holding its exclusive lock.
// Calls on the same cluster run one at a time, calls on different clusters do not block each other.
func (s *Store) Modify(id int, fn func(c *model.Cluster) error) error {
	e, ok := s.current.Load().index[id]
	if !ok {
		return fmt.Errorf("cluster %d: %w", id, model.NotFoundErr)
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return fn(&e.cluster)
}

// ExportForPersistence returns copies of all clusters in store order.
func (s *Store) ExportForPersistence() []model.Cluster {
	g := s.current.Load()
	clusters := make([]model.Cluster, len(g.entries))
	for i, e := range g.entries {
		e.mutex.RLock()
		clusters[i] = e.cluster.Copy()
		e.mutex.RUnlock()
	}
	return clusters
}

// LoadFrom replaces the active generation with persisted clusters.
func (s *Store) LoadFrom(clusters []model.Cluster, metric model.Metric) error {
	seen := make(map[int]bool, len(clusters))
	dim := -1
	for _, c := range clusters {
		if seen[c.ID] {
			return fmt.Errorf("duplicate cluster id %d", c.ID)
		}
		seen[c.ID] = true
		if dim >= 0 && len(c.Centroid) != dim {
			return fmt.Errorf("cluster %d has centroid of size %d instead of %d: %w", c.ID, len(c.Centroid), dim, model.DimensionErr)
		}
		dim = len(c.Centroid)
	}
	s.ReplaceAll(clusters, metric)
	return nil
}
