package sync

import (
	"context"

	"github.com/memsync-oss/memsync/internal/frontmatter"
	"github.com/memsync-oss/memsync/internal/memfs"
	"github.com/memsync-oss/memsync/internal/snapshot"
)

// Status collects ground truth and classifies every label. It is read-only:
// neither replica nor the snapshot is touched, so running it twice with no
// intervening change yields identical output.
func (e *Engine) Status(ctx context.Context, agentID string) (*Report, error) {
	gt, err := e.collect(ctx, agentID)
	if err != nil {
		return nil, err
	}
	report := classify(agentID, gt.files, gt.blocks, gt.snap, e.policy)
	e.logger.Debug("classified memory labels",
		"agent_id", agentID,
		"labels", len(report.Entries),
		"clean", report.Clean,
	)
	return report, nil
}

// classify runs the core algorithm over the union of scanned files, located
// blocks, and snapshot-known labels.
func classify(agentID string, files memfs.FileSet, blocks BlockSet, snap *snapshot.Snapshot, policy ConflictPolicy) *Report {
	report := &Report{AgentID: agentID, Clean: true}

	for _, label := range sortedLabels(files, blocks, snap) {
		file, hasFile := files[label]
		block, hasBlock := blocks[label]

		switch {
		case hasFile && !hasBlock:
			// If a block hash was recorded and the file has not moved
			// since, the block was deleted remotely and the file is
			// stable: nothing to report.
			_, hadBlock := snap.BlockHashes[label]
			if hadBlock && !snap.FileChanged(label, frontmatter.HashWhole(file.Content)) {
				continue
			}
			report.add(Entry{Label: label, State: StateNewFile})

		case !hasFile && hasBlock:
			_, hadFile := snap.FileHashes[label]
			if hadFile && !snap.BlockChanged(label, frontmatter.HashContent(block.Block.Value)) {
				continue
			}
			report.add(Entry{Label: label, State: StateNewBlock})

		case !hasFile && !hasBlock:
			// Snapshot-only label; both sides are gone.
			continue

		default:
			mismatch := (file.Location == memfs.LocationSystem) != block.Attached

			blockHash := frontmatter.HashContent(block.Block.Value)
			if frontmatter.HashBody(file.Content) == blockHash {
				// Content equality always wins, even over a stale
				// snapshot.
				report.add(Entry{Label: label, State: StateInSync, LocationMismatch: mismatch})
				continue
			}

			fileChanged := snap.FileChanged(label, frontmatter.HashWhole(file.Content))
			blockChanged := snap.BlockChanged(label, blockHash)
			report.add(Entry{
				Label:            label,
				State:            policy.Classify(fileChanged, blockChanged),
				LocationMismatch: mismatch,
			})
		}
	}

	return report
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
	if e.State != StateInSync || e.LocationMismatch {
		r.Clean = false
	}
}
