/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"context"
	"sync"
)

// Storage persists one lineup per slot.
// Load returns ErrNoLineup when nothing has been saved under slot.
type Storage interface {
	Load(ctx context.Context, slot string) (Assignments, error)
	Save(ctx context.Context, slot string, a Assignments) error
}

// MemoryStorage keeps lineups in process memory. State is lost on restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{slots: make(map[string][]byte)}
}

// Slots are kept in their wire form so a load never aliases a saved map.
func (m *MemoryStorage) Load(_ context.Context, slot string) (Assignments, error) {
	m.mu.RLock()
	data, ok := m.slots[slot]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNoLineup
	}

	var a Assignments
	if err := a.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return a, nil
}

func (m *MemoryStorage) Save(_ context.Context, slot string, a Assignments) error {
	data, err := a.MarshalJSON()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.slots[slot] = data
	m.mu.Unlock()

	return nil
}
