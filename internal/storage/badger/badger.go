package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/drakos74/hybrid-digits/internal/storage"
)

var ClosedErr = errors.New("storage closed")

// Storage is a persistence backed by an embedded badger database.
// Keys are scoped by the shard name.
type Storage struct {
	mu     sync.RWMutex
	db     *badgerdb.DB
	shard  string
	closed bool
}

// Open opens the badger database in the given directory.
func Open(dir, shard string) (*Storage, error) {
	return open(badgerdb.DefaultOptions(dir), shard)
}

// OpenInMemory opens a badger database that is lost on close.
func OpenInMemory(shard string) (*Storage, error) {
	return open(badgerdb.DefaultOptions("").WithInMemory(true), shard)
}

func open(opts badgerdb.Options, shard string) (*Storage, error) {
	opts = opts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger db: %w", err)
	}
	return &Storage{db: db, shard: shard}, nil
}

// Shard opens a database per shard under the given root dir.
func Shard(root string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return Open(fmt.Sprintf("%s/%s", root, shard), shard)
	}
}

func (s *Storage) key(k storage.Key) []byte {
	return []byte(fmt.Sprintf("%s/%s", s.shard, k.Path()))
}

func (s *Storage) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ClosedErr
	}
	return nil
}

func (s *Storage) Store(k storage.Key, value interface{}) error {
	if err := s.check(); err != nil {
		return err
	}
	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value for '%+v': %w", k, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(s.key(k), bb)
	})
}

func (s *Storage) Load(k storage.Key, value interface{}) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(s.key(k))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("not found '%+v': %w", k, storage.NotFoundErr)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, value); err != nil {
				return fmt.Errorf("could not unmarshal '%+v': %v: %w", k, err, storage.CouldNotLoadErr)
			}
			return nil
		})
	})
}

func (s *Storage) Delete(k storage.Key) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(s.key(k))
	})
}

// Keys lists the keys of the shard.
func (s *Storage) Keys() ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	prefix := []byte(s.shard + "/")
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)[len(prefix):]))
		}
		return nil
	})
	return keys, err
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
