// Package memfs maps the local memory file tree to the label space.
//
// Labels are hierarchical (slashes become subdirectories) and unique across
// the whole memory root. Files under system/ mirror attached blocks; files
// elsewhere under the root mirror detached blocks.
package memfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Location indicates which subtree a memory file lives in.
type Location string

const (
	LocationSystem   Location = "system"
	LocationDetached Location = "detached"
)

const (
	// SystemDir is the subtree mirroring attached blocks.
	SystemDir = "system"

	// StateDir holds engine state (snapshots, reports, journal) and is
	// never scanned.
	StateDir = ".memsync"

	fileSuffix = ".md"
)

// managedLabels are engine-owned labels that never participate in
// classification, such as the self-referential filesystem manifest.
var managedLabels = map[string]struct{}{
	"memory_filesystem": {},
}

// IsManagedLabel reports whether label belongs to the engine itself.
func IsManagedLabel(label string) bool {
	_, ok := managedLabels[label]
	return ok
}

// Entry is one scanned memory file.
type Entry struct {
	Label    string
	Location Location
	Path     string // absolute path on disk
	Content  string
}

// FileSet maps label to its scanned entry.
type FileSet map[string]Entry

// LabelForPath converts a path relative to its scan root into a label:
// separators normalized to forward slashes, file suffix stripped.
func LabelForPath(rel string) string {
	return strings.TrimSuffix(filepath.ToSlash(rel), fileSuffix)
}

// PathForLabel returns the on-disk path for a label at the given location.
func PathForLabel(root, label string, loc Location) string {
	rel := filepath.FromSlash(label) + fileSuffix
	if loc == LocationSystem {
		return filepath.Join(root, SystemDir, rel)
	}
	return filepath.Join(root, rel)
}

// Scan walks the memory root and returns every memory file keyed by label.
// The system subtree and the detached tree are walked separately; if a label
// somehow exists in both, the system entry wins. Symlinks are never
// followed, reserved subtrees are skipped, and managed labels are excluded.
func Scan(root string) (FileSet, error) {
	out := make(FileSet)

	detached, err := scanTree(root, LocationDetached, []string{SystemDir, StateDir})
	if err != nil {
		return nil, err
	}
	for label, e := range detached {
		out[label] = e
	}

	system, err := scanTree(filepath.Join(root, SystemDir), LocationSystem, nil)
	if err != nil {
		return nil, err
	}
	for label, e := range system {
		out[label] = e
	}

	return out, nil
}

func scanTree(dir string, loc Location, reserved []string) (FileSet, error) {
	out := make(FileSet)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return out, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			for _, r := range reserved {
				if rel == r {
					return filepath.SkipDir
				}
			}
			return nil
		}
		// Never follow symlinks; a link could point back into the tree.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.HasSuffix(d.Name(), fileSuffix) {
			return nil
		}

		label := LabelForPath(rel)
		if IsManagedLabel(label) {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read memory file %s: %w", path, readErr)
		}
		out[label] = Entry{
			Label:    label,
			Location: loc,
			Path:     path,
			Content:  string(content),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return out, nil
}

// WriteFile writes a memory file atomically via a temporary file, creating
// parent directories as needed.
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create memory directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
