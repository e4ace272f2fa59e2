package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/drakos74/hybrid-digits/internal/model"
)

// Archive is the durable record of a session.
// Implementations are not expected to be consulted during prediction.
type Archive interface {
	SaveConfig(cfg model.SystemConfig) error
	// LoadConfig returns NotFoundErr if no configuration has been saved.
	LoadConfig() (model.SystemConfig, error)
	// SaveClusters replaces all stored clusters.
	SaveClusters(clusters []model.Cluster) error
	LoadClusters() ([]model.Cluster, error)
	// SaveSample inserts or updates the sample by its id.
	SaveSample(sample model.Sample) error
	LoadSamples() ([]model.Sample, error)
	AppendSnapshot(snapshot model.Snapshot) error
	Snapshots() ([]model.Snapshot, error)
	// ResetAll drops config, clusters and samples. The snapshot history is kept.
	ResetAll() error
	Close() error
}

var (
	configKey   = Key{Group: ArchiveTable, Label: "config"}
	clustersKey = Key{Group: ArchiveTable, Label: "clusters"}
	samplesKey  = Key{Group: ArchiveTable, Label: "samples"}
	snapshotsK  = K{Group: ArchiveTable, Label: "snapshots"}
)

func sampleKey(id string) Key {
	return Key{Group: "sample", Label: id}
}

// KV is an archive over a key value persistence and an event registry.
type KV struct {
	lock     sync.Mutex
	store    Persistence
	registry Registry
}

// NewKVArchive creates a new archive on top of the given storage.
func NewKVArchive(store Persistence, registry Registry) *KV {
	return &KV{
		store:    store,
		registry: registry,
	}
}

func (kv *KV) SaveConfig(cfg model.SystemConfig) error {
	return kv.store.Store(configKey, cfg)
}

func (kv *KV) LoadConfig() (model.SystemConfig, error) {
	var cfg model.SystemConfig
	if err := kv.store.Load(configKey, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (kv *KV) SaveClusters(clusters []model.Cluster) error {
	return kv.store.Store(clustersKey, clusters)
}

func (kv *KV) LoadClusters() ([]model.Cluster, error) {
	clusters := make([]model.Cluster, 0)
	err := kv.store.Load(clustersKey, &clusters)
	if errors.Is(err, NotFoundErr) {
		return []model.Cluster{}, nil
	}
	return clusters, err
}

func (kv *KV) index() ([]string, error) {
	ids := make([]string, 0)
	err := kv.store.Load(samplesKey, &ids)
	if err != nil && !errors.Is(err, NotFoundErr) {
		return nil, err
	}
	return ids, nil
}

func (kv *KV) SaveSample(sample model.Sample) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	ids, err := kv.index()
	if err != nil {
		return fmt.Errorf("could not load sample index: %w", err)
	}
	if err := kv.store.Store(sampleKey(sample.ID), sample); err != nil {
		return err
	}
	for _, id := range ids {
		if id == sample.ID {
			return nil
		}
	}
	return kv.store.Store(samplesKey, append(ids, sample.ID))
}

func (kv *KV) LoadSamples() ([]model.Sample, error) {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	ids, err := kv.index()
	if err != nil {
		return nil, fmt.Errorf("could not load sample index: %w", err)
	}
	samples := make([]model.Sample, 0, len(ids))
	for _, id := range ids {
		var sample model.Sample
		if err := kv.store.Load(sampleKey(id), &sample); err != nil {
			return nil, fmt.Errorf("could not load sample '%s': %w", id, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (kv *KV) AppendSnapshot(snapshot model.Snapshot) error {
	return kv.registry.Add(snapshotsK, snapshot)
}

func (kv *KV) Snapshots() ([]model.Snapshot, error) {
	var snapshots []model.Snapshot
	if err := kv.registry.GetAll(snapshotsK, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (kv *KV) ResetAll() error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	ids, err := kv.index()
	if err != nil {
		return fmt.Errorf("could not load sample index: %w", err)
	}
	for _, id := range ids {
		if err := kv.store.Delete(sampleKey(id)); err != nil {
			return err
		}
	}
	for _, k := range []Key{samplesKey, clustersKey, configKey} {
		if err := kv.store.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying storage, if it holds any resources.
func (kv *KV) Close() error {
	if c, ok := kv.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
