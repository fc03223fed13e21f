package memfs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_SystemAndDetached(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "system/persona.md", "persona body")
	writeTestFile(t, root, "projects/memsync.md", "project notes")

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persona, ok := files["persona"]
	if !ok {
		t.Fatal("expected persona label")
	}
	if persona.Location != LocationSystem {
		t.Errorf("expected system location, got %s", persona.Location)
	}
	if persona.Content != "persona body" {
		t.Errorf("unexpected content: %q", persona.Content)
	}

	proj, ok := files["projects/memsync"]
	if !ok {
		t.Fatal("expected nested detached label")
	}
	if proj.Location != LocationDetached {
		t.Errorf("expected detached location, got %s", proj.Location)
	}
}

func TestScan_NestedSystemLabels(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "system/persona/soul.md", "soul")

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := files["persona/soul"]; !ok {
		t.Fatalf("expected persona/soul label, got %v", labels(files))
	}
}

func TestScan_SystemWinsOnCollision(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "system/persona.md", "system copy")
	writeTestFile(t, root, "persona.md", "detached copy")

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := files["persona"]
	if e.Location != LocationSystem || e.Content != "system copy" {
		t.Errorf("system entry should win the collision, got %+v", e)
	}
}

func TestScan_SkipsReservedAndNonMemoryFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, ".memsync/agent-1.json", "{}")
	writeTestFile(t, root, ".memsync/reports/conflicts.md", "not memory")
	writeTestFile(t, root, "notes.txt", "wrong suffix")
	writeTestFile(t, root, "real.md", "kept")

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected only one entry, got %v", labels(files))
	}
	if _, ok := files["real"]; !ok {
		t.Error("expected real label to survive")
	}
}

func TestScan_ExcludesManagedLabels(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "system/memory_filesystem.md", "manifest")
	writeTestFile(t, root, "system/persona.md", "persona")

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := files["memory_filesystem"]; ok {
		t.Error("managed label must never be scanned")
	}
	if _, ok := files["persona"]; !ok {
		t.Error("regular labels should still be scanned")
	}
}

func TestScan_NeverFollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not reliable on windows")
	}
	root := t.TempDir()
	writeTestFile(t, root, "real.md", "real")

	outside := t.TempDir()
	writeTestFile(t, outside, "leaked.md", "leaked")
	if err := os.Symlink(outside, filepath.Join(root, "linked")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "real.md"), filepath.Join(root, "alias.md")); err != nil {
		t.Fatal(err)
	}

	files, err := Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("symlinked entries should be skipped, got %v", labels(files))
	}
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected empty file set, got %v", labels(files))
	}
}

func TestPathForLabel_RoundTrip(t *testing.T) {
	root := t.TempDir()

	sysPath := PathForLabel(root, "persona/soul", LocationSystem)
	want := filepath.Join(root, "system", "persona", "soul.md")
	if sysPath != want {
		t.Errorf("expected %s, got %s", want, sysPath)
	}

	rel, err := filepath.Rel(filepath.Join(root, SystemDir), sysPath)
	if err != nil {
		t.Fatal(err)
	}
	if LabelForPath(rel) != "persona/soul" {
		t.Errorf("label mapping should round-trip, got %s", LabelForPath(rel))
	}

	detPath := PathForLabel(root, "scratch", LocationDetached)
	if detPath != filepath.Join(root, "scratch.md") {
		t.Errorf("unexpected detached path: %s", detPath)
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "system", "deep", "label.md")
	if err := WriteFile(path, "content"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "content" {
		t.Errorf("unexpected content: %q", b)
	}
}

func labels(fs FileSet) []string {
	out := make([]string, 0, len(fs))
	for l := range fs {
		out = append(out, l)
	}
	return out
}
