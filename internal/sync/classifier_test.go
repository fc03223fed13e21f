package sync

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/memsync-oss/memsync/internal/frontmatter"
	"github.com/memsync-oss/memsync/internal/letta"
	"github.com/memsync-oss/memsync/internal/snapshot"
	"github.com/memsync-oss/memsync/internal/testutil"
)

const testAgent = "agent-1"

func newTestEngine(t *testing.T, remote *testutil.MockRemote, root string) *Engine {
	t.Helper()
	return NewEngine(remote.Client(), root, ThreeWayPolicy{}, testutil.TestLogger())
}

func writeMemoryFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func saveSnapshot(t *testing.T, root string, snap *snapshot.Snapshot) {
	t.Helper()
	if err := snapshot.NewStore(root).Save(testAgent, snap); err != nil {
		t.Fatal(err)
	}
}

func entryFor(t *testing.T, report *Report, label string) Entry {
	t.Helper()
	for _, e := range report.Entries {
		if e.Label == label {
			return e
		}
	}
	t.Fatalf("no entry for label %s in %+v", label, report.Entries)
	return Entry{}
}

func hasEntry(report *Report, label string) bool {
	for _, e := range report.Entries {
		if e.Label == label {
			return true
		}
	}
	return false
}

func TestStatus_FreshFileIsNewFile(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "persona/soul.md", "a brand new memory")

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := entryFor(t, report, "persona/soul")
	if e.State != StateNewFile {
		t.Errorf("expected new-file, got %s", e.State)
	}
	if report.Clean {
		t.Error("report with a new file is not clean")
	}
}

func TestStatus_FreshBlockIsNewBlock(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "remote only"})

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entryFor(t, report, "persona").State != StateNewBlock {
		t.Errorf("expected new-block, got %s", entryFor(t, report, "persona").State)
	}
}

func TestStatus_ContentEqualityBeatsStaleSnapshot(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "Hello")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "Hello"})

	snap := snapshot.New()
	snap.FileHashes["persona"] = "garbage"
	snap.BlockHashes["persona"] = "also garbage"
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := entryFor(t, report, "persona")
	if e.State != StateInSync {
		t.Errorf("equal content must classify in-sync, got %s", e.State)
	}
	if !report.Clean {
		t.Error("report should be clean")
	}
}

func TestStatus_OneSidedDriftFromFile(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "v2")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "v1"})

	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("v1")
	snap.BlockHashes["persona"] = frontmatter.HashContent("v1")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "persona"); e.State != StatePendingFromFile {
		t.Errorf("expected pending-from-file, got %s", e.State)
	}
}

func TestStatus_OneSidedDriftFromBlock(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "v1")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "v2"})

	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("v1")
	snap.BlockHashes["persona"] = frontmatter.HashContent("v1")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "persona"); e.State != StatePendingFromBlock {
		t.Errorf("expected pending-from-block, got %s", e.State)
	}
}

func TestStatus_TrueConflict(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "v2a")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "v2b"})

	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("v1")
	snap.BlockHashes["persona"] = frontmatter.HashContent("v1")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "persona"); e.State != StateConflict {
		t.Errorf("expected conflict, got %s", e.State)
	}
}

func TestStatus_CorruptSnapshotDifferenceIsConflict(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "A")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "B"})

	// Snapshot claims both sides are unchanged, yet content differs:
	// never silently resolve.
	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("A")
	snap.BlockHashes["persona"] = frontmatter.HashContent("B")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "persona"); e.State != StateConflict {
		t.Errorf("expected conservative conflict, got %s", e.State)
	}
}

func TestStatus_DeletedBlockStableFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "stable")

	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("stable")
	snap.BlockHashes["persona"] = frontmatter.HashContent("stable")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasEntry(report, "persona") {
		t.Errorf("deleted block with stable file must be skipped, got %+v", report.Entries)
	}
	if !report.Clean {
		t.Error("skipped label must not dirty the report")
	}
}

func TestStatus_DeletedFileStableBlockIsSkipped(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "stable"})

	snap := snapshot.New()
	snap.FileHashes["persona"] = frontmatter.HashWhole("stable")
	snap.BlockHashes["persona"] = frontmatter.HashContent("stable")
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasEntry(report, "persona") {
		t.Errorf("deleted file with stable block must be skipped, got %+v", report.Entries)
	}
}

func TestStatus_LocationMismatchFlag(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	// System file mirroring a block that is owned but not attached.
	writeMemoryFile(t, root, "system/persona.md", "same")
	remote.AddOwned(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "same"})

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := entryFor(t, report, "persona")
	if e.State != StateInSync {
		t.Errorf("content is equal, expected in-sync, got %s", e.State)
	}
	if !e.LocationMismatch {
		t.Error("expected location mismatch flag")
	}
	if report.Clean {
		t.Error("location mismatch must dirty the report")
	}
}

func TestStatus_AttachedWinsOverDetachedLabelCollision(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "attached value")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "attached value"})
	remote.AddOwned(testAgent, letta.Block{ID: "block-2", Label: "persona", Value: "orphan value"})

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := entryFor(t, report, "persona")
	if e.State != StateInSync || e.LocationMismatch {
		t.Errorf("attached block must win the label collision: %+v", e)
	}
}

func TestStatus_HistoricalSnapshotBlockID(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "scratch.md", "local v2")
	// The block is neither attached nor tagged; only the snapshot knows
	// its id.
	remote.AddBlock(letta.Block{ID: "block-9", Label: "scratch", Value: "remote v1"})

	snap := snapshot.New()
	snap.FileHashes["scratch"] = frontmatter.HashWhole("remote v1")
	snap.BlockHashes["scratch"] = frontmatter.HashContent("remote v1")
	snap.BlockIDs["scratch"] = "block-9"
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "scratch"); e.State != StatePendingFromFile {
		t.Errorf("historical block should be located by id, got %s", e.State)
	}
}

func TestStatus_DeletedHistoricalBlockIsAbsentNotError(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "scratch.md", "stable")

	snap := snapshot.New()
	snap.FileHashes["scratch"] = frontmatter.HashWhole("stable")
	snap.BlockHashes["scratch"] = frontmatter.HashContent("stable")
	snap.BlockIDs["scratch"] = "block-gone"
	saveSnapshot(t, root, snap)

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("a deleted historical block must not abort the run: %v", err)
	}
	if hasEntry(report, "scratch") {
		t.Error("stable file over a deleted block must be skipped")
	}
}

func TestStatus_MetadataOnlyEditStaysInSync(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "---\ndescription: \"edited locally\"\n---\n\nshared body")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "shared body"})

	report, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := entryFor(t, report, "persona"); e.State != StateInSync {
		t.Errorf("metadata-only edits must not desync the body comparison, got %s", e.State)
	}
}

func TestStatus_Idempotent(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	writeMemoryFile(t, root, "system/persona.md", "v2a")
	writeMemoryFile(t, root, "notes.md", "fresh")
	remote.AddAttached(testAgent, letta.Block{ID: "block-1", Label: "persona", Value: "v2b"})

	engine := newTestEngine(t, remote, root)
	first, err := engine.Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Status(context.Background(), testAgent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("status must be idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStatus_HardListingFailureAborts(t *testing.T) {
	root := t.TempDir()
	remote := testutil.NewMockRemote(t)
	remote.FailListings = true

	if _, err := newTestEngine(t, remote, root).Status(context.Background(), testAgent); err == nil {
		t.Fatal("a hard listing failure must propagate")
	}
}

func TestClassify_FileWinsPolicy(t *testing.T) {
	policy := FileWinsPolicy{}

	if got := policy.Classify(true, true); got != StatePendingFromFile {
		t.Errorf("both changed under file-wins should pend from file, got %s", got)
	}
	if got := policy.Classify(false, false); got != StatePendingFromFile {
		t.Errorf("stale snapshot under file-wins should pend from file, got %s", got)
	}
	if got := policy.Classify(false, true); got != StatePendingFromBlock {
		t.Errorf("block-only change should pend from block, got %s", got)
	}
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	if err != nil || p.Name() != "three-way" {
		t.Errorf("empty name should select three-way, got %v %v", p, err)
	}
	if _, err := PolicyByName("newest-wins"); err == nil {
		t.Error("unknown policy must be rejected")
	}
}
