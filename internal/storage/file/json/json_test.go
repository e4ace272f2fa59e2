package json

import (
	"errors"
	"testing"

	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Event struct {
	Name  string    `json:"name"`
	ID    string    `json:"id"`
	Index int       `json:"index"`
	Data  []float64 `json:"data"`
}

func newEvent(i int) Event {
	return Event{
		Name:  "test",
		ID:    uuid.New().String(),
		Index: i,
		Data:  []float64{float64(i), 0.5},
	}
}

func TestBlobStorage(t *testing.T) {

	blob := NewJsonBlob(storage.ModelsTable, "test", true).WithPath(t.TempDir())

	k := storage.Key{Group: "extractor", Label: "snapshot"}

	var missing Event
	err := blob.Load(k, &missing)
	assert.True(t, errors.Is(err, storage.NotFoundErr))

	ev := newEvent(3)
	require.NoError(t, blob.Store(k, ev))

	var loaded Event
	require.NoError(t, blob.Load(k, &loaded))
	assert.Equal(t, ev, loaded)

	// overwrite
	ev2 := newEvent(4)
	require.NoError(t, blob.Store(k, ev2))
	require.NoError(t, blob.Load(k, &loaded))
	assert.Equal(t, ev2, loaded)

	require.NoError(t, blob.Delete(k))
	err = blob.Load(k, &loaded)
	assert.True(t, errors.Is(err, storage.NotFoundErr))
	// deleting twice is fine
	assert.NoError(t, blob.Delete(k))
}

func TestEvents_Put(t *testing.T) {

	dir := t.TempDir()
	logger := NewEventRegistry("processor").WithHash(1).WithDir(dir)

	k := storage.K{
		Group: "group",
		Label: "label",
	}

	events := make([]Event, 0)
	for i := 0; i < 10; i++ {
		ev := newEvent(i)
		events = append(events, ev)
		err := logger.Add(k, ev)
		assert.NoError(t, err)
	}

	// a second session appends to a new file
	next := NewEventRegistry("processor").WithHash(2).WithDir(dir)
	last := newEvent(10)
	events = append(events, last)
	require.NoError(t, next.Add(k, last))

	var loadedEvents []Event
	err := logger.GetAll(k, &loadedEvents)
	assert.NoError(t, err)

	assert.Equal(t, 11, len(loadedEvents))
	for i, ev := range events {
		assert.Equal(t, ev, loadedEvents[i])
	}

	var none []Event
	err = logger.GetAll(storage.K{Group: "other"}, &none)
	assert.NoError(t, err)
	assert.Empty(t, none)

	err = logger.GetAll(k, none)
	assert.Error(t, err)
}
