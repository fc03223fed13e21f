// Package sync reconciles the local memory file tree with the remote block
// store. Either side can be edited independently; the engine detects genuine
// conflicts versus one-sided drift using content hashes and the persisted
// last-known-agreement snapshot, without any shared lock.
//
// Each operation is a one-shot batch: collect ground truth, classify, and
// (for Resolve only) apply decisions and checkpoint the snapshot. The
// engine assumes a single actor at a time; concurrent resolvers against the
// same agent race and the last snapshot writer wins.
package sync

import (
	"sort"

	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/memfs"
	"github.com/memsync-oss/memsync/internal/snapshot"
	"github.com/memsync-oss/memsync/internal/telemetry"
)

// State classifies one label for one run.
type State string

const (
	StateNewFile          State = "new-file"
	StateNewBlock         State = "new-block"
	StatePendingFromFile  State = "pending-from-file"
	StatePendingFromBlock State = "pending-from-block"
	StateConflict         State = "conflict"
	StateInSync           State = "in-sync"
)

// BlockEntry is one remote block located for a label.
type BlockEntry struct {
	Block    letta.Block
	Attached bool
}

// BlockSet maps label to its located block, attached entries preferred.
type BlockSet map[string]BlockEntry

// Entry is the classification of one label. LocationMismatch is orthogonal
// to the content state: it flags a system file mirroring a detached block,
// or a detached file mirroring an attached one.
type Entry struct {
	Label            string `json:"label"`
	State            State  `json:"state"`
	LocationMismatch bool   `json:"location_mismatch,omitempty"`
}

// Report is the outcome of one classification run.
type Report struct {
	AgentID string  `json:"agent_id"`
	Entries []Entry `json:"entries"`
	Clean   bool    `json:"clean"`
}

// Counts tallies entries by state, for summaries and the journal.
func (r *Report) Counts() map[State]int {
	out := make(map[State]int)
	for _, e := range r.Entries {
		out[e.State]++
	}
	return out
}

// Conflicts returns the labels classified strictly as conflict.
func (r *Report) Conflicts() []string {
	var out []string
	for _, e := range r.Entries {
		if e.State == StateConflict {
			out = append(out, e.Label)
		}
	}
	return out
}

// Engine runs the sync operations for one memory root against one remote.
type Engine struct {
	client    *letta.Client
	root      string
	snapshots *snapshot.Store
	policy    ConflictPolicy
	logger    *telemetry.Logger
}

// NewEngine creates a sync engine over the given memory root.
func NewEngine(client *letta.Client, root string, policy ConflictPolicy, logger *telemetry.Logger) *Engine {
	return &Engine{
		client:    client,
		root:      root,
		snapshots: snapshot.NewStore(root),
		policy:    policy,
		logger:    logger,
	}
}

// sortedLabels returns the union of all label sources, sorted, with
// engine-managed labels excluded.
func sortedLabels(files memfs.FileSet, blocks BlockSet, snap *snapshot.Snapshot) []string {
	seen := make(map[string]struct{})
	for label := range files {
		seen[label] = struct{}{}
	}
	for label := range blocks {
		seen[label] = struct{}{}
	}
	for label := range snap.FileHashes {
		seen[label] = struct{}{}
	}
	for label := range snap.BlockHashes {
		seen[label] = struct{}{}
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		if memfs.IsManagedLabel(label) {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
