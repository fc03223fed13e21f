// Package journal records sync runs so past reconciliation activity can be
// inspected after the fact.
package journal

import (
	"time"
)

// RunRecord represents one recorded sync command run
type RunRecord struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	Command     string         `json:"command"` // status, diff, resolve
	Status      string         `json:"status"`  // running, completed, failed
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"` // classification state -> label count
	Clean       bool           `json:"clean"`
	ReportPath  string         `json:"report_path,omitempty"`
}

// NewRunRecord creates a new run record in the running state
func NewRunRecord(id, agentID, command string) *RunRecord {
	return &RunRecord{
		ID:        id,
		AgentID:   agentID,
		Command:   command,
		Status:    "running",
		StartedAt: time.Now(),
		Counts:    make(map[string]int),
	}
}

// Duration returns how long the run took, or zero while it is still running.
func (r *RunRecord) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
