package predict

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/drakos74/hybrid-digits/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept in memory.
const DefaultCacheSize = 1024

// Extractor turns images into embeddings.
type Extractor interface {
	Trained() bool
	Extract(image model.Image) (model.Embedding, error)
}

// Clusters is the read side of the cluster store.
type Clusters interface {
	Len() int
	NearestCluster(embedding model.Embedding) (int, float64, error)
	GetByID(id int) (model.Cluster, error)
}

// Prediction is the best guess for an image.
type Prediction struct {
	Label      model.Label     `json:"label"`
	Confidence float64         `json:"confidence"`
	ClusterID  int             `json:"cluster_id"`
	Distance   float64         `json:"distance"`
	Embedding  model.Embedding `json:"embedding"`
}

// Service predicts labels by routing embeddings to their nearest cluster.
type Service struct {
	mutex     sync.RWMutex
	extractor Extractor
	clusters  Clusters
	cache     *lru.Cache[uint64, model.Embedding]
}

// NewService creates a new prediction service over the given clusters.
func NewService(clusters Clusters, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, model.Embedding](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create embedding cache: %w", err)
	}
	return &Service{
		clusters: clusters,
		cache:    cache,
	}, nil
}

// Use switches to the given extractor and drops the embeddings of the previous one.
func (s *Service) Use(extractor Extractor) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.extractor = extractor
	s.cache.Purge()
}

// Ready checks if predictions can be served.
func (s *Service) Ready() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.extractor != nil && s.extractor.Trained() && s.clusters.Len() > 0
}

// Predict returns the label of the heaviest weight of the nearest cluster.
func (s *Service) Predict(image model.Image) (Prediction, error) {
	embedding, err := s.embed(image)
	if err != nil {
		return Prediction{}, err
	}
	if s.clusters.Len() == 0 {
		return Prediction{}, fmt.Errorf("no clusters available: %w", model.ModelNotReadyErr)
	}
	id, distance, err := s.clusters.NearestCluster(embedding)
	if err != nil {
		return Prediction{}, fmt.Errorf("could not route embedding: %w", err)
	}
	c, err := s.clusters.GetByID(id)
	if err != nil {
		// the generation was swapped in between
		return Prediction{}, fmt.Errorf("nearest cluster %d: %w", id, model.ModelNotReadyErr)
	}
	label := c.Weights.Argmax()
	return Prediction{
		Label:      label,
		Confidence: c.Weights[label],
		ClusterID:  id,
		Distance:   distance,
		Embedding:  embedding.Copy(),
	}, nil
}

func (s *Service) embed(image model.Image) (model.Embedding, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.extractor == nil || !s.extractor.Trained() {
		return nil, fmt.Errorf("feature extractor not trained: %w", model.ModelNotReadyErr)
	}
	key := Hash(image)
	if e, ok := s.cache.Get(key); ok {
		return e, nil
	}
	e, err := s.extractor.Extract(image)
	if err != nil {
		return nil, fmt.Errorf("could not extract features: %w", err)
	}
	s.cache.Add(key, e)
	return e, nil
}

// Hash fingerprints the pixels of an image.
func Hash(image model.Image) uint64 {
	d := xxhash.New()
	var b [8]byte
	for _, p := range image {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(p))
		_, _ = d.Write(b[:])
	}
	return d.Sum64()
}
