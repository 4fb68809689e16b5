package training

import (
	"sort"
	"sync"
)

// Observer is notified after every write to the Store.
type Observer func(Status)

// Store holds the latest Status per model id. Writes overwrite
// unconditionally; records are never deleted.
type Store struct {
	records   map[string]Status
	observers []Observer
	mu        sync.RWMutex
}

// NewStore creates an empty status store.
func NewStore() *Store {
	return &Store{
		records: map[string]Status{},
	}
}

// Subscribe registers an observer. Observers run synchronously on the
// writer's goroutine and must not block.
func (s *Store) Subscribe(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, observer)
}

// Set overwrites the record for status.ID.
func (s *Store) Set(status Status) {
	s.mu.Lock()
	s.records[status.ID] = status
	observers := s.observers
	s.mu.Unlock()

	for _, observe := range observers {
		observe(status)
	}
}

// Get returns the record for id.
func (s *Store) Get(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.records[id]
	return status, ok
}

// Lookup returns the record for id, or the unknown sentinel.
func (s *Store) Lookup(id string) Status {
	if status, ok := s.Get(id); ok {
		return status
	}

	return Unknown(id)
}

// List returns all records ordered by id.
func (s *Store) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]Status, 0, len(s.records))
	for _, status := range s.records {
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})

	return statuses
}
