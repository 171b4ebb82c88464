// Package inmemory provides a map-backed storage driver, used by tests and
// by servers running without a configured database.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/turnpike-ai/turnpike/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	mu sync.RWMutex

	// turns maps turn id to its record
	turns map[string]*storage.TurnRecord
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*storage.TurnRecord),
	}
}

// Put stores a record, replacing any existing record with the same id.
func (s *Driver) Put(_ context.Context, record *storage.TurnRecord) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}
	if record.ID == "" {
		return errors.New("cannot store record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.turns[record.ID] = &copied
	return nil
}

// Get retrieves a record by its turn id.
func (s *Driver) Get(_ context.Context, id string) (*storage.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.turns[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	copied := *record
	return &copied, nil
}

// BySession returns all records for a session, oldest first.
func (s *Driver) BySession(_ context.Context, sessionID string) ([]*storage.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*storage.TurnRecord
	for _, record := range s.turns {
		if record.SessionID != sessionID {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}
