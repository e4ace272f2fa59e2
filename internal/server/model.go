package server

import (
	"time"

	"github.com/google/uuid"
)

// Block allows 2 processes to sync
type Block struct {
	// Action block.Action <- Signal{}
	Action chan Signal
	// ReAction	<-block.ReAction
	ReAction chan Signal
}

func NewBlock() Block {
	return Block{
		Action:   make(chan Signal),
		ReAction: make(chan Signal),
	}
}

// Signal marks the start or the end of a request.
type Signal struct {
	Name string
	ID   string
	Time time.Time
}

// NewSignal creates a new signal with the given name.
func NewSignal(name string) *Signal {
	return &Signal{
		Name: name,
		Time: time.Now(),
		ID:   uuid.New().String(),
	}
}

// Create returns an immutable instance of the signal
func (a *Signal) Create() Signal {
	return *a
}
