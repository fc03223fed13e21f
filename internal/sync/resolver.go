package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
	"github.com/memsync-oss/memsync/internal/frontmatter"
	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/memfs"
	"github.com/memsync-oss/memsync/internal/snapshot"
)

// Side is an explicit per-label resolution decision.
type Side string

const (
	SideFile  Side = "file"
	SideBlock Side = "block"
)

// Request asks for one label to be resolved to one side.
type Request struct {
	Label      string `json:"label"`
	Resolution Side   `json:"resolution"`
}

// Resolved records one applied resolution. Overridden marks a read-only
// label whose requested file resolution was forced to the block side.
type Resolved struct {
	Label      string `json:"label"`
	Resolution Side   `json:"resolution"`
	Overridden bool   `json:"overridden,omitempty"`
}

// ResolutionError records one label that could not be resolved. Siblings in
// the same batch are still processed.
type ResolutionError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Result is the outcome of one resolve batch.
type Result struct {
	Resolved []Resolved        `json:"resolved"`
	Errors   []ResolutionError `json:"errors"`
}

// ParseRequests validates a resolutions JSON array before any I/O happens.
func ParseRequests(data []byte) ([]Request, error) {
	var reqs []Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeInvalidResolution, "resolutions must be a JSON array", err).
			WithSuggestion(`Pass e.g. --resolutions '[{"label":"persona","resolution":"file"}]'`)
	}
	if len(reqs) == 0 {
		return nil, syncerrors.New(syncerrors.CodeInvalidResolution, "no resolutions given")
	}
	for _, r := range reqs {
		if r.Label == "" {
			return nil, syncerrors.New(syncerrors.CodeInvalidResolution, "resolution entry is missing a label")
		}
		if r.Resolution != SideFile && r.Resolution != SideBlock {
			return nil, syncerrors.New(syncerrors.CodeInvalidResolution,
				fmt.Sprintf("unknown resolution %q for label %s", r.Resolution, r.Label)).
				WithSuggestion(`Each resolution must be "file" or "block"`)
		}
	}
	return reqs, nil
}

// Resolve applies explicit per-label decisions and then checkpoints the
// snapshot from fresh ground truth. The batch is not atomic: labels that
// cannot be resolved land in the result's errors while the rest proceed. A
// crash before the checkpoint is safe; the stale snapshot makes the
// affected labels reappear as pending or conflict on the next run.
func (e *Engine) Resolve(ctx context.Context, agentID string, reqs []Request) (*Result, error) {
	gt, err := e.collect(ctx, agentID)
	if err != nil {
		return nil, err
	}

	result := &Result{Resolved: []Resolved{}, Errors: []ResolutionError{}}
	for _, req := range reqs {
		e.resolveOne(ctx, gt, req, result)
	}

	if err := e.checkpoint(ctx, agentID); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) resolveOne(ctx context.Context, gt *groundTruth, req Request, result *Result) {
	file, hasFile := gt.files[req.Label]
	block, hasBlock := gt.blocks[req.Label]

	switch {
	case !hasFile && !hasBlock:
		result.fail(req.Label, "label not found in either replica")
		return
	case !hasFile:
		result.fail(req.Label, "no local file for label")
		return
	case !hasBlock:
		result.fail(req.Label, "no remote block for label")
		return
	}

	side := req.Resolution
	overridden := false
	if block.Block.ReadOnly && side == SideFile {
		// The remote is authoritative for read-only labels; the block is
		// never updated, the file is overwritten instead.
		side = SideBlock
		overridden = true
		e.logger.Warn("read-only label forced to block resolution", "label", req.Label)
	}

	switch side {
	case SideFile:
		parsed := frontmatter.Parse(file.Content)
		update := letta.BlockUpdate{
			Value:       &parsed.Body,
			Description: parsed.Meta.Description,
			Limit:       parsed.Meta.Limit,
			ReadOnly:    parsed.Meta.ReadOnly,
		}
		if !block.Attached {
			label := req.Label
			update.Label = &label
		}
		if _, err := e.client.UpdateBlock(ctx, block.Block.ID, update); err != nil {
			result.fail(req.Label, fmt.Sprintf("block update failed: %v", err))
			return
		}

	case SideBlock:
		content := frontmatter.Render(metaForBlock(block.Block), block.Block.Value)
		if err := memfs.WriteFile(file.Path, content); err != nil {
			result.fail(req.Label, fmt.Sprintf("file write failed: %v", err))
			return
		}
	}

	result.Resolved = append(result.Resolved, Resolved{
		Label:      req.Label,
		Resolution: side,
		Overridden: overridden,
	})
}

// checkpoint re-reads both replicas and rewrites the whole snapshot. Every
// label is re-baselined, not only the ones just resolved, so concurrent
// edits that happened during the batch are absorbed rather than replayed.
func (e *Engine) checkpoint(ctx context.Context, agentID string) error {
	gt, err := e.collect(ctx, agentID)
	if err != nil {
		return err
	}

	snap := snapshot.New()
	for label, file := range gt.files {
		snap.FileHashes[label] = frontmatter.HashWhole(file.Content)
	}
	for label, block := range gt.blocks {
		snap.BlockHashes[label] = frontmatter.HashContent(block.Block.Value)
		snap.BlockIDs[label] = block.Block.ID
	}
	now := time.Now().UTC()
	snap.LastSync = &now

	if err := e.snapshots.Save(agentID, snap); err != nil {
		return err
	}
	e.logger.Debug("snapshot checkpointed", "agent_id", agentID, "labels", len(snap.FileHashes))
	return nil
}

func (r *Result) fail(label, message string) {
	r.Errors = append(r.Errors, ResolutionError{Label: label, Message: message})
}

// metaForBlock derives the header metadata a block carries: only populated
// remote fields become header keys.
func metaForBlock(b letta.Block) frontmatter.Meta {
	var m frontmatter.Meta
	if b.Description != "" {
		desc := b.Description
		m.Description = &desc
	}
	if b.Limit > 0 {
		limit := b.Limit
		m.Limit = &limit
	}
	if b.ReadOnly {
		ro := b.ReadOnly
		m.ReadOnly = &ro
	}
	return m
}
