package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memsync-oss/memsync/internal/memfs"
)

// Diff writes a reviewable document holding the full before/after content of
// every label classified strictly as conflict, and returns its path. It is
// read-only with respect to both replicas and the snapshot. With no
// conflicts it writes nothing and returns an empty path.
func (e *Engine) Diff(ctx context.Context, agentID string) (string, *Report, error) {
	gt, err := e.collect(ctx, agentID)
	if err != nil {
		return "", nil, err
	}
	report := classify(agentID, gt.files, gt.blocks, gt.snap, e.policy)

	conflicts := report.Conflicts()
	if len(conflicts) == 0 {
		return "", report, nil
	}

	var sb strings.Builder
	sb.WriteString("# Memory sync conflicts\n\n")
	sb.WriteString(fmt.Sprintf("Agent: %s\n", agentID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().UTC().Format(time.RFC3339)))

	for _, label := range conflicts {
		file := gt.files[label]
		block := gt.blocks[label]

		sb.WriteString(fmt.Sprintf("\n## %s\n", label))
		sb.WriteString("\n### Local file\n\n")
		writeFenced(&sb, file.Content)
		sb.WriteString("\n### Remote block\n\n")
		writeFenced(&sb, block.Block.Value)
	}

	path := filepath.Join(e.root, memfs.StateDir, "reports",
		fmt.Sprintf("conflicts-%s.md", uuid.New().String()))
	if err := memfs.WriteFile(path, sb.String()); err != nil {
		return "", nil, err
	}
	e.logger.Info("conflict report written", "agent_id", agentID, "path", path, "conflicts", len(conflicts))
	return path, report, nil
}

// writeFenced fences content with enough backticks to survive fences inside
// the content itself.
func writeFenced(sb *strings.Builder, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	sb.WriteString(fence + "\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(fence + "\n")
}
