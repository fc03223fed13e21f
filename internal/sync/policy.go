package sync

import (
	"fmt"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
)

// ConflictPolicy decides the state of a label whose file and block content
// differ, given which sides drifted from the last agreement. The policy is
// always chosen explicitly by configuration; there is no implicit default
// resolution anywhere in the engine.
type ConflictPolicy interface {
	Name() string
	Classify(fileChanged, blockChanged bool) State
}

// ThreeWayPolicy reports a conflict when both sides diverged independently.
// A difference with neither side flagged as changed means the snapshot is
// stale or corrupt; that is conservatively a conflict too, never a silent
// resolution.
type ThreeWayPolicy struct{}

func (ThreeWayPolicy) Name() string { return "three-way" }

func (ThreeWayPolicy) Classify(fileChanged, blockChanged bool) State {
	switch {
	case fileChanged && blockChanged:
		return StateConflict
	case fileChanged:
		return StatePendingFromFile
	case blockChanged:
		return StatePendingFromBlock
	default:
		return StateConflict
	}
}

// FileWinsPolicy treats the local file as authoritative: only a block-only
// change pends from the block; every other difference, stale snapshots
// included, pends from the file.
type FileWinsPolicy struct{}

func (FileWinsPolicy) Name() string { return "file-wins" }

func (FileWinsPolicy) Classify(fileChanged, blockChanged bool) State {
	if blockChanged && !fileChanged {
		return StatePendingFromBlock
	}
	return StatePendingFromFile
}

// PolicyByName returns the policy for a configuration value.
func PolicyByName(name string) (ConflictPolicy, error) {
	switch name {
	case "", "three-way":
		return ThreeWayPolicy{}, nil
	case "file-wins":
		return FileWinsPolicy{}, nil
	default:
		return nil, syncerrors.New(syncerrors.CodeConfigInvalid,
			fmt.Sprintf("unknown conflict policy %q", name)).
			WithSuggestion(`Set sync.policy to "three-way" or "file-wins"`)
	}
}
