package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <agent-id>",
	Short: "Write a reviewable document for conflicted labels",
	Long: `Collect every label in true conflict and write their full local and
remote content to a Markdown report for side-by-side review.

Examples:
  memsync diff agent-1c0d6c80`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.journal.StartRun(agentID, "diff"); err != nil {
		rt.logger.Warn("journal unavailable", "error", err)
	}

	path, report, err := rt.engine.Diff(cmd.Context(), agentID)
	if err != nil {
		_ = rt.journal.FailRun(err)
		return err
	}
	_ = rt.journal.CompleteRun(stateCounts(report), report.Clean, path)

	conflicts := report.Conflicts()
	if len(conflicts) == 0 {
		fmt.Println("No conflicts.")
		return nil
	}

	fmt.Printf("%d conflict(s):\n", len(conflicts))
	for _, label := range conflicts {
		fmt.Printf("  ✗ %s\n", label)
	}
	fmt.Printf("\nReport written to %s\n", path)
	fmt.Printf("Resolve with e.g. `memsync resolve %s --resolutions '[{\"label\":%q,\"resolution\":\"file\"}]'`\n",
		agentID, conflicts[0])
	return nil
}
