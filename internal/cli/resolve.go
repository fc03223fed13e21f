package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
	"github.com/memsync-oss/memsync/internal/sync"
)

var (
	resolutionsJSON string
	resolutionsFile string
	resolveJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <agent-id>",
	Short: "Apply explicit per-label resolutions and checkpoint",
	Long: `Apply a batch of per-label decisions, each picking the local file or the
remote block as the winner, then checkpoint the snapshot so both sides
are the new baseline.

Read-only blocks are never updated: a file resolution against one is
forced to the block side and the local file is overwritten instead.

A completed batch exits 0 even when some labels could not be resolved;
per-label failures are reported in the result, not via the exit code.

Examples:
  memsync resolve agent-1c0d6c80 --resolutions '[{"label":"persona","resolution":"file"}]'
  memsync resolve agent-1c0d6c80 --file resolutions.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolutionsJSON, "resolutions", "", "resolutions as a JSON array")
	resolveCmd.Flags().StringVar(&resolutionsFile, "file", "", "path to a JSON file of resolutions")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "emit the result as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	data, err := resolutionInput()
	if err != nil {
		return err
	}
	// Validation happens before any replica is touched.
	reqs, err := sync.ParseRequests(data)
	if err != nil {
		return err
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.journal.StartRun(agentID, "resolve"); err != nil {
		rt.logger.Warn("journal unavailable", "error", err)
	}

	result, err := rt.engine.Resolve(cmd.Context(), agentID, reqs)
	if err != nil {
		_ = rt.journal.FailRun(err)
		return err
	}
	counts := map[string]int{"resolved": len(result.Resolved), "errors": len(result.Errors)}
	_ = rt.journal.CompleteRun(counts, len(result.Errors) == 0, "")

	return printResult(os.Stdout, agentID, result, resolveJSON)
}

// printResult reports a completed batch. Per-label failures are part of the
// result, not a command failure: a completed run always returns nil.
func printResult(w io.Writer, agentID string, result *sync.Result, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(result)
	}

	for _, r := range result.Resolved {
		if r.Overridden {
			fmt.Fprintf(w, "● %s resolved to %s (read-only, file overwritten)\n", r.Label, r.Resolution)
			continue
		}
		fmt.Fprintf(w, "● %s resolved to %s\n", r.Label, r.Resolution)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "✗ %s: %s\n", e.Label, e.Message)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n%d label(s) not resolved; snapshot checkpointed for %s.\n",
			len(result.Errors), agentID)
		return nil
	}
	fmt.Fprintf(w, "\nSnapshot checkpointed for %s.\n", agentID)
	return nil
}

func resolutionInput() ([]byte, error) {
	switch {
	case resolutionsJSON != "" && resolutionsFile != "":
		return nil, syncerrors.New(syncerrors.CodeInvalidResolution, "pass --resolutions or --file, not both")
	case resolutionsJSON != "":
		return []byte(resolutionsJSON), nil
	case resolutionsFile != "":
		data, err := os.ReadFile(resolutionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read resolutions file: %w", err)
		}
		return data, nil
	default:
		return nil, syncerrors.New(syncerrors.CodeInvalidResolution, "no resolutions given").
			WithSuggestion(`Pass --resolutions '[{"label":"persona","resolution":"file"}]' or --file resolutions.json`)
	}
}
