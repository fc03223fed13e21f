package sync

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/memfs"
	"github.com/memsync-oss/memsync/internal/snapshot"
)

// groundTruth is everything one run needs: the scanned file tree, the
// located blocks, and the last-known-agreement snapshot.
type groundTruth struct {
	files  memfs.FileSet
	blocks BlockSet
	snap   *snapshot.Snapshot
}

// collect gathers ground truth for one run. The four reads — local scan,
// attached listing, owned listing, and direct lookups of block ids recorded
// only in the snapshot — have no ordering dependency and run concurrently;
// classification waits for all of them.
func (e *Engine) collect(ctx context.Context, agentID string) (*groundTruth, error) {
	snap, err := e.snapshots.Load(agentID)
	if err != nil {
		return nil, err
	}

	var (
		files      memfs.FileSet
		attached   []letta.Block
		owned      []letta.Block
		historical []letta.Block
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var scanErr error
		files, scanErr = memfs.Scan(e.root)
		return scanErr
	})
	g.Go(func() error {
		var listErr error
		attached, listErr = e.client.ListAttachedBlocks(gctx, agentID)
		return listErr
	})
	g.Go(func() error {
		var listErr error
		owned, listErr = e.client.ListOwnedBlocks(gctx, agentID)
		return listErr
	})
	g.Go(func() error {
		var lookupErr error
		historical, lookupErr = e.lookupSnapshotBlocks(gctx, snap)
		return lookupErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &groundTruth{
		files:  files,
		blocks: mergeBlocks(attached, owned, historical),
		snap:   snap,
	}, nil
}

// lookupSnapshotBlocks resolves block ids recorded in the snapshot by
// direct lookup. A deleted block (404) is absent, never an error.
func (e *Engine) lookupSnapshotBlocks(ctx context.Context, snap *snapshot.Snapshot) ([]letta.Block, error) {
	var out []letta.Block
	for _, id := range sortedValues(snap.BlockIDs) {
		block, err := e.client.GetBlock(ctx, id)
		if errors.Is(err, syncerrors.New(syncerrors.CodeBlockNotFound, "")) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *block)
	}
	return out, nil
}

// mergeBlocks builds the label-keyed block set. Attached blocks win over
// owned-but-detached blocks with the same label; a detached block whose
// label collides with an attached one is dropped silently. Historical
// blocks recovered from snapshot ids fill in only labels (and ids) not
// already covered by the listings.
func mergeBlocks(attached, owned, historical []letta.Block) BlockSet {
	out := make(BlockSet)
	ids := make(map[string]struct{})

	for _, b := range attached {
		ids[b.ID] = struct{}{}
		if _, ok := out[b.Label]; ok {
			continue
		}
		out[b.Label] = BlockEntry{Block: b, Attached: true}
	}

	for _, b := range owned {
		if _, dup := ids[b.ID]; dup {
			continue
		}
		ids[b.ID] = struct{}{}
		if _, ok := out[b.Label]; ok {
			continue
		}
		out[b.Label] = BlockEntry{Block: b, Attached: false}
	}

	for _, b := range historical {
		if _, dup := ids[b.ID]; dup {
			continue
		}
		ids[b.ID] = struct{}{}
		if _, ok := out[b.Label]; ok {
			continue
		}
		out[b.Label] = BlockEntry{Block: b, Attached: false}
	}

	return out
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{})
	for _, v := range m {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// Deterministic lookup order keeps runs reproducible.
	sort.Strings(out)
	return out
}
