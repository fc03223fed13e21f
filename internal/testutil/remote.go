// Package testutil provides shared test fixtures: a mock block store API
// and quiet loggers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/telemetry"
)

// RecordedUpdate captures one PATCH body as raw JSON keys, so tests can
// assert which fields were (or were not) sent.
type RecordedUpdate struct {
	BlockID string
	Fields  map[string]json.RawMessage
}

// MockRemote is an in-memory block store behind a real HTTP server.
type MockRemote struct {
	t      *testing.T
	mu     sync.Mutex
	server *httptest.Server

	blocks   map[string]*letta.Block
	attached map[string]map[string]bool // agentID -> attached block ids

	// FailListings makes every listing endpoint return 500, simulating a
	// hard remote failure.
	FailListings bool

	// Updates records every PATCH applied, in order.
	Updates []RecordedUpdate
}

// NewMockRemote starts a mock block store server. It is shut down
// automatically when the test finishes.
func NewMockRemote(t *testing.T) *MockRemote {
	t.Helper()

	m := &MockRemote{
		t:        t,
		blocks:   make(map[string]*letta.Block),
		attached: make(map[string]map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agents/{agent}/core-memory/blocks", m.handleListAttached)
	mux.HandleFunc("GET /v1/blocks", m.handleListOwned)
	mux.HandleFunc("GET /v1/blocks/{id}", m.handleGetBlock)
	mux.HandleFunc("PATCH /v1/blocks/{id}", m.handleUpdateBlock)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the server base URL.
func (m *MockRemote) URL() string {
	return m.server.URL
}

// Client returns a letta client pointed at this mock.
func (m *MockRemote) Client() *letta.Client {
	return letta.NewClient(m.server.URL, "test-key")
}

// AddAttached registers a block as attached to the agent.
func (m *MockRemote) AddAttached(agentID string, b letta.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := b
	m.blocks[b.ID] = &copied
	if m.attached[agentID] == nil {
		m.attached[agentID] = make(map[string]bool)
	}
	m.attached[agentID][b.ID] = true
}

// AddOwned registers a detached block owned by the agent via its tag.
func (m *MockRemote) AddOwned(agentID string, b letta.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := b
	copied.Tags = append(copied.Tags, letta.OwnerTag(agentID))
	m.blocks[b.ID] = &copied
}

// AddBlock registers a block that is neither attached nor tagged; it is
// reachable only by direct id lookup, like a historical snapshot id.
func (m *MockRemote) AddBlock(b letta.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := b
	m.blocks[b.ID] = &copied
}

// DeleteBlock removes a block entirely, as if deleted remotely.
func (m *MockRemote) DeleteBlock(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, id)
	for _, ids := range m.attached {
		delete(ids, id)
	}
}

// Block returns a copy of the stored block.
func (m *MockRemote) Block(id string) (letta.Block, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	if !ok {
		return letta.Block{}, false
	}
	return *b, true
}

// SetValue changes a block's value in place, as if the agent edited it.
func (m *MockRemote) SetValue(id, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.blocks[id]; ok {
		b.Value = value
	}
}

func (m *MockRemote) handleListAttached(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailListings {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	agentID := r.PathValue("agent")
	var blocks []letta.Block
	for id := range m.attached[agentID] {
		if b, ok := m.blocks[id]; ok {
			blocks = append(blocks, *b)
		}
	}
	writePage(w, r, blocks)
}

func (m *MockRemote) handleListOwned(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailListings {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	tag := r.URL.Query().Get("tags")
	var blocks []letta.Block
	for _, b := range m.blocks {
		for _, t := range b.Tags {
			if t == tag {
				blocks = append(blocks, *b)
				break
			}
		}
	}
	writePage(w, r, blocks)
}

func (m *MockRemote) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"block not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, b)
}

func (m *MockRemote) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"block not found"}`, http.StatusNotFound)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	m.Updates = append(m.Updates, RecordedUpdate{BlockID: b.ID, Fields: fields})

	var update letta.BlockUpdate
	raw, _ := json.Marshal(fields)
	if err := json.Unmarshal(raw, &update); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	if update.Value != nil {
		b.Value = *update.Value
	}
	if update.Description != nil {
		b.Description = *update.Description
	}
	if update.Limit != nil {
		b.Limit = *update.Limit
	}
	if update.ReadOnly != nil {
		b.ReadOnly = *update.ReadOnly
	}
	if update.Label != nil {
		b.Label = *update.Label
	}
	writeJSON(w, b)
}

// writePage applies the cursor paging contract: blocks sorted by id,
// starting after the cursor, at most limit entries.
func writePage(w http.ResponseWriter, r *http.Request, blocks []letta.Block) {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })

	after := r.URL.Query().Get("after")
	if after != "" {
		start := 0
		for i, b := range blocks {
			if b.ID > after {
				start = i
				break
			}
			start = i + 1
		}
		blocks = blocks[start:]
	}

	limit := len(blocks)
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n < limit {
			limit = n
		}
	}
	writeJSON(w, blocks[:limit])
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// TestLogger returns a logger suitable for tests.
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(false)
}
