package pipeline

import (
	"fmt"
	"sync"

	"github.com/deepscout/deepscout/pkg/state"
)

// Store is an in-memory registry of runs keyed by run ID. Runs are
// independent instances; the store only provides lookup for the API.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewStore creates a new in-memory run store
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*Run),
	}
}

// Add registers a run
func (s *Store) Add(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID() == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, exists := s.runs[run.ID()]; exists {
		return fmt.Errorf("run %s already registered", run.ID())
	}

	s.runs[run.ID()] = run
	return nil
}

// Get looks up a run by ID
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, nil
}

// List returns a snapshot of every registered run
func (s *Store) List() []state.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]state.Snapshot, 0, len(s.runs))
	for _, run := range s.runs {
		snapshots = append(snapshots, run.Snapshot())
	}
	return snapshots
}

// Remove drops a run from the registry
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// Count returns the number of registered runs
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
