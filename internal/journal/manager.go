package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for journal storage backends
type Store interface {
	SaveRun(run *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	ListRuns(agentID string, limit int) ([]*RunRecord, error)
	DeleteRun(id string) error

	Close() error
}

// Manager records sync runs against a storage backend
type Manager struct {
	store     Store
	mu        sync.Mutex
	activeRun *RunRecord
}

// NewManager creates a new journal manager
func NewManager(driver, path string) (*Manager, error) {
	var store Store
	var err error

	switch driver {
	case "memory", "":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported journal driver: %s", driver)
	}

	return &Manager{store: store}, nil
}

// Close closes the journal manager
func (m *Manager) Close() error {
	return m.store.Close()
}

// StartRun creates and returns a new run record
func (m *Manager) StartRun(agentID, command string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := NewRunRecord(uuid.New().String(), agentID, command)
	if err := m.store.SaveRun(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	m.activeRun = run
	return run, nil
}

// CompleteRun marks the active run as complete with its outcome
func (m *Manager) CompleteRun(counts map[string]int, clean bool, reportPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeRun == nil {
		return fmt.Errorf("no active run")
	}

	m.activeRun.Status = "completed"
	m.activeRun.CompletedAt = time.Now()
	m.activeRun.Counts = counts
	m.activeRun.Clean = clean
	m.activeRun.ReportPath = reportPath

	if err := m.store.SaveRun(m.activeRun); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// FailRun marks the active run as failed
func (m *Manager) FailRun(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeRun == nil {
		return fmt.Errorf("no active run")
	}

	m.activeRun.Status = "failed"
	m.activeRun.CompletedAt = time.Now()
	m.activeRun.Error = err.Error()

	if saveErr := m.store.SaveRun(m.activeRun); saveErr != nil {
		return fmt.Errorf("failed to save run: %w", saveErr)
	}

	return nil
}

// ListRuns lists recent runs for an agent, newest first
func (m *Manager) ListRuns(agentID string, limit int) ([]*RunRecord, error) {
	return m.store.ListRuns(agentID, limit)
}
