package storage

import (
	"errors"
	"fmt"
)

const (
	ModelsTable  = "models"
	ArchiveTable = "archive"
	RegistryDir  = "registry"
)

var (
	// DefaultDir is the root directory of the file based storage.
	DefaultDir = "file-storage"
)

var (
	NotFoundErr     = errors.New("not found")
	CouldNotLoadErr = errors.New("could not load")
)

// Shard creates a new storage implementation for the given shard.
type Shard func(shard string) (Persistence, error)

// EventRegistry creates a new registry for the given path.
type EventRegistry func(path string) (Registry, error)

// Key is the storage key for a general implementation
type Key struct {
	Hash  int64  `json:"hash"`
	Group string `json:"group"`
	Label string `json:"label"`
}

// K is a simplified key for storage
type K struct {
	Group string `json:"group"`
	Label string `json:"label"`
}

// Path returns a file system friendly representation of the key.
func (k Key) Path() string {
	return fmt.Sprintf("%s_%v_%s", k.Group, k.Hash, k.Label)
}

// Persistence stores and loads values by key.
type Persistence interface {
	Store(k Key, value interface{}) error
	Load(k Key, value interface{}) error
	Delete(k Key) error
}

// Registry is an append only log of values.
type Registry interface {
	Add(key K, value interface{}) error
	GetAll(key K, values interface{}) error
	Root() string
}
