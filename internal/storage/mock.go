package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// MemoryShard creates in-memory storages.
func MemoryShard() Shard {
	return func(shard string) (Persistence, error) {
		return NewMemoryStorage(), nil
	}
}

// MemoryStorage keeps the json encoding of every value in memory.
type MemoryStorage struct {
	mutex    sync.RWMutex
	Elements map[Key][]byte
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{Elements: make(map[Key][]byte)}
}

func (m *MemoryStorage) Store(k Key, value interface{}) error {
	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value: %w", err)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Elements[k] = bb
	return nil
}

func (m *MemoryStorage) Load(k Key, value interface{}) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	bb, ok := m.Elements[k]
	if !ok {
		return fmt.Errorf("not found '%v': %w", k, NotFoundErr)
	}
	if err := json.Unmarshal(bb, value); err != nil {
		return fmt.Errorf("could not unmarshal value '%v': %v: %w", k, err, CouldNotLoadErr)
	}
	return nil
}

func (m *MemoryStorage) Delete(k Key) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.Elements, k)
	return nil
}

// MemoryEventRegistry creates in-memory registries.
func MemoryEventRegistry() EventRegistry {
	return func(path string) (Registry, error) {
		return NewMemoryRegistry(), nil
	}
}

// MemoryRegistry keeps the events in memory.
type MemoryRegistry struct {
	mutex  sync.RWMutex
	Events map[K][][]byte
}

// NewMemoryRegistry creates a new in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		Events: make(map[K][][]byte),
	}
}

func (m *MemoryRegistry) Add(key K, value interface{}) error {
	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Events[key] = append(m.Events[key], bb)
	return nil
}

func (m *MemoryRegistry) GetAll(key K, values interface{}) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Decode(m.Events[key], values)
}

func (m *MemoryRegistry) Root() string {
	return ""
}

// Decode unmarshals every encoded event and appends it to the slice values points to.
func Decode(events [][]byte, values interface{}) error {
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("only accepting pointers to slices as placeholder for the results")
	}
	slice := v.Elem()
	t := slice.Type().Elem()
	for _, e := range events {
		instance := reflect.New(t)
		if err := json.Unmarshal(e, instance.Interface()); err != nil {
			return fmt.Errorf("could not decode event '%s': %v: %w", string(e), err, CouldNotLoadErr)
		}
		slice = reflect.Append(slice, instance.Elem())
	}
	v.Elem().Set(slice)
	return nil
}
