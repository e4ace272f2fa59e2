package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/rs/zerolog/log"
)

// BlobStorage keeps every key as a json file under <path>/<table>/<shard>.
type BlobStorage struct {
	path  string
	table string
	shard string
	debug bool
}

// BlobShard creates json blob storages for the given table.
func BlobShard(table string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return NewJsonBlob(table, shard, false), nil
	}
}

// NewJsonBlob creates a new blob storage under the default dir.
// table has the same schema
// shard is a logical split
func NewJsonBlob(table, shard string, debug bool) *BlobStorage {
	return &BlobStorage{
		table: table,
		shard: shard,
		path:  storage.DefaultDir,
		debug: debug,
	}
}

// WithPath overrides the root dir of the storage.
func (s *BlobStorage) WithPath(p string) *BlobStorage {
	s.path = p
	return s
}

func (s *BlobStorage) dir() string {
	return filepath.Join(s.path, s.table, s.shard)
}

func (s *BlobStorage) Store(k storage.Key, value interface{}) error {
	p := s.dir()
	err := Save(p, fileName(k), value)
	if err == nil && s.debug {
		log.Debug().Str("path", p).Str("file", fileName(k)).Msg("stored json file")
	}
	return err
}

func (s *BlobStorage) Load(k storage.Key, value interface{}) error {
	return Load(s.dir(), fileName(k), value)
}

func (s *BlobStorage) Delete(k storage.Key) error {
	err := os.Remove(filepath.Join(s.dir(), fileName(k)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete '%+v': %w", k, err)
	}
	return nil
}

func fileName(k storage.Key) string {
	return fmt.Sprintf("%s.json", k.Path())
}

// Save saves the given json struct into the given path with the provided filename.
func Save(filePath string, fileName string, value interface{}) error {
	// check if filepath exists
	info, err := os.Stat(filePath)
	if err != nil {
		err := os.MkdirAll(filePath, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not make dir: %s: %w", filePath, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path given is not a directory: %s", filePath)
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode value for '%s': %w", fileName, err)
	}

	// write then rename
	p := filepath.Join(filePath, fileName)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("could not write file '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("could not move file '%s': %w", p, err)
	}
	return nil
}

// Load loads the payload from the given filePath and fileName.
func Load(filePath string, fileName string, value interface{}) error {
	p := filepath.Join(filePath, fileName)

	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("could not read file '%s' %s: %w", p, err.Error(), storage.NotFoundErr)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("could not unmarshal key for '%s': '%v': %w", fileName, err, storage.CouldNotLoadErr)
	}

	return nil
}
