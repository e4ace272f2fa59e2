package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/drakos74/hybrid-digits/internal/storage"
)

const (
	filename = "%d.events.log"
)

// Logger appends json lines to a log file per key.
type Logger struct {
	root string
	path string
}

func NewLogger(root, folder string) *Logger {
	return &Logger{root: root, path: folder}
}

func (l *Logger) filePath(k storage.K) string {
	return path.Join(l.root, storage.RegistryDir, l.path, k.Group, k.Label)
}

func (l *Logger) Store(k storage.Key, value interface{}) error {

	filePath := l.filePath(storage.K{
		Group: k.Group,
		Label: k.Label,
	})

	if err := os.MkdirAll(filePath, os.ModePerm); err != nil {
		return fmt.Errorf("could not make dir: %s: %w", filePath, err)
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode value '%+v': %w", value, err)
	}
	f, err := os.OpenFile(path.Join(filePath, fmt.Sprintf(filename, k.Hash)), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}

	defer f.Close()

	if _, err = f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("could not write log file for  '%+v': %w", k, err)
	}
	return nil
}

// Lines returns the raw log lines for the given key.
func (l *Logger) Lines(k storage.Key) ([][]byte, error) {
	fileName := path.Join(l.filePath(storage.K{
		Group: k.Group,
		Label: k.Label,
	}), fmt.Sprintf(filename, k.Hash))

	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("could not read file '%s': %w", fileName, storage.NotFoundErr)
	}

	lines := make([][]byte, 0)
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not scan file '%s': %w", fileName, err)
	}
	return lines, nil
}

// Registry is an append only event log backed by json line files.
type Registry struct {
	hash   int64
	logger *Logger
	root   string
}

func NewEventRegistry(path string) *Registry {
	return &Registry{
		hash:   time.Now().Unix(),
		logger: NewLogger(storage.DefaultDir, path),
		root:   path,
	}
}

// EventRegistry creates a new registry generator
func EventRegistry(parent string) storage.EventRegistry {
	return func(p string) (storage.Registry, error) {
		if p == "" {
			return NewEventRegistry(parent), nil
		}
		return NewEventRegistry(path.Join(parent, p)), nil
	}
}

func (e *Registry) WithHash(h int64) *Registry {
	e.hash = h
	return e
}

// WithDir moves the registry files under the given root dir.
func (e *Registry) WithDir(dir string) *Registry {
	e.logger.root = dir
	return e
}

func (e *Registry) Root() string {
	return e.root
}

func (e *Registry) Add(key storage.K, value interface{}) error {
	k := storage.Key{
		Hash:  e.hash,
		Group: key.Group,
		Label: key.Label,
	}
	return e.logger.Store(k, value)
}

// GetAll appends the values of all log files for the key to the given slice pointer.
// Files are read in the order of their hash.
func (e *Registry) GetAll(key storage.K, values interface{}) error {

	filePath := e.logger.filePath(key)
	hashes := make([]int64, 0)
	err := filepath.Walk(filePath, func(p string, info os.FileInfo, err error) error {
		if info == nil || info.IsDir() {
			return nil
		}
		h, err := strconv.ParseInt(strings.Split(info.Name(), ".")[0], 10, 64)
		if err != nil {
			return fmt.Errorf("non-numeric path '%s' found for hash: %w", p, err)
		}
		hashes = append(hashes, h)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not get events: %w", err)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i] < hashes[j]
	})

	events := make([][]byte, 0)
	for _, h := range hashes {
		lines, err := e.logger.Lines(storage.Key{
			Hash:  h,
			Group: key.Group,
			Label: key.Label,
		})
		if err != nil {
			return fmt.Errorf("could not load key '%+v': %w", key, err)
		}
		events = append(events, lines...)
	}
	return storage.Decode(events, values)
}
