package journal

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements an in-memory journal store
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*RunRecord),
	}
}

// SaveRun saves a run record
func (s *MemoryStore) SaveRun(run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

// GetRun retrieves a run record
func (s *MemoryStore) GetRun(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if run, ok := s.runs[id]; ok {
		copied := *run
		return &copied, nil
	}
	return nil, fmt.Errorf("run not found: %s", id)
}

// ListRuns lists recent runs for an agent, newest first
func (s *MemoryStore) ListRuns(agentID string, limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if agentID != "" && run.AgentID != agentID {
			continue
		}
		copied := *run
		runs = append(runs, &copied)
	}

	// Sort by start time descending
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// DeleteRun deletes a run
func (s *MemoryStore) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}

// Close closes the store (no-op for memory)
func (s *MemoryStore) Close() error {
	return nil
}
