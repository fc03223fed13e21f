// Package snapshot persists the last-known-agreement state between the local
// memory tree and the remote block store. The snapshot is the engine's only
// durable state and is always read and written as a whole document.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
)

const stateDir = ".memsync"

// Snapshot records, per label, the hashes at the last point file and block
// content were confirmed equal, plus the block ids seen at that point.
type Snapshot struct {
	FileHashes  map[string]string `json:"fileHashes"`
	BlockHashes map[string]string `json:"blockHashes"`
	BlockIDs    map[string]string `json:"blockIds"`
	LastSync    *time.Time        `json:"lastSync"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		FileHashes:  make(map[string]string),
		BlockHashes: make(map[string]string),
		BlockIDs:    make(map[string]string),
	}
}

// FileChanged reports whether the file hash differs from the recorded one.
// A label with no recorded hash counts as changed.
func (s *Snapshot) FileChanged(label, hash string) bool {
	stored, ok := s.FileHashes[label]
	return !ok || stored != hash
}

// BlockChanged reports whether the block hash differs from the recorded one.
// A label with no recorded hash counts as changed.
func (s *Snapshot) BlockChanged(label, hash string) bool {
	stored, ok := s.BlockHashes[label]
	return !ok || stored != hash
}

// document is the on-disk shape. Older product versions persisted the same
// data under different key names; both sets are accepted on load and the
// current names win when both are present.
type document struct {
	FileHashes  map[string]string `json:"fileHashes"`
	BlockHashes map[string]string `json:"blockHashes"`
	BlockIDs    map[string]string `json:"blockIds"`
	LastSync    *time.Time        `json:"lastSync"`

	LegacyFileHashes  map[string]string `json:"localFiles,omitempty"`
	LegacyBlockHashes map[string]string `json:"remoteBlocks,omitempty"`
	LegacyBlockIDs    map[string]string `json:"remoteIds,omitempty"`
	LegacyLastSync    *time.Time        `json:"syncedAt,omitempty"`
}

// Store loads and saves per-agent snapshots under the memory root.
type Store struct {
	root string
}

// NewStore creates a snapshot store rooted at the memory root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Path returns the snapshot document path for an agent.
func (st *Store) Path(agentID string) string {
	return filepath.Join(st.root, stateDir, agentID+".json")
}

// Load reads the agent's snapshot. A missing document yields an empty
// snapshot; a document in the legacy shape is upgraded; missing fields
// default to empty maps.
func (st *Store) Load(agentID string) (*Snapshot, error) {
	data, err := os.ReadFile(st.Path(agentID))
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeSnapshotCorrupt,
			fmt.Sprintf("snapshot for agent %s is not valid JSON", agentID), err).
			WithSuggestion("Delete the snapshot file; the next resolve will rebuild it from ground truth")
	}

	snap := New()
	snap.FileHashes = firstNonNil(doc.FileHashes, doc.LegacyFileHashes)
	snap.BlockHashes = firstNonNil(doc.BlockHashes, doc.LegacyBlockHashes)
	snap.BlockIDs = firstNonNil(doc.BlockIDs, doc.LegacyBlockIDs)
	snap.LastSync = doc.LastSync
	if snap.LastSync == nil {
		snap.LastSync = doc.LegacyLastSync
	}
	return snap, nil
}

// Save writes the snapshot atomically as one whole document.
func (st *Store) Save(agentID string, snap *Snapshot) error {
	path := st.Path(agentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func firstNonNil(current, legacy map[string]string) map[string]string {
	if current != nil {
		return current
	}
	if legacy != nil {
		return legacy
	}
	return make(map[string]string)
}
