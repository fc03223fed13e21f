package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memsync-oss/memsync/internal/sync"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <agent-id>",
	Short: "Classify drift between local files and remote blocks",
	Long: `Compare the local memory tree, the remote blocks, and the last sync
snapshot, and report the state of every label. Read-only: nothing is
written to either side.

Examples:
  memsync status agent-1c0d6c80
  memsync status agent-1c0d6c80 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit the report as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.journal.StartRun(agentID, "status"); err != nil {
		rt.logger.Warn("journal unavailable", "error", err)
	}

	report, err := rt.engine.Status(cmd.Context(), agentID)
	if err != nil {
		_ = rt.journal.FailRun(err)
		return err
	}
	_ = rt.journal.CompleteRun(stateCounts(report), report.Clean, "")

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(report *sync.Report) {
	if len(report.Entries) == 0 {
		fmt.Println("No memory labels found.")
		return
	}

	for _, e := range report.Entries {
		line := fmt.Sprintf("%s %-20s %s", stateIcon(e.State), e.Label, e.State)
		if e.LocationMismatch {
			line += "  (location mismatch)"
		}
		fmt.Println(line)
	}

	fmt.Println()
	if report.Clean {
		fmt.Println("Everything in sync.")
		return
	}
	counts := report.Counts()
	if n := counts[sync.StateConflict]; n > 0 {
		fmt.Printf("%d conflict(s). Run `memsync diff %s` to review them.\n", n, report.AgentID)
	}
}

func stateCounts(report *sync.Report) map[string]int {
	counts := make(map[string]int)
	for state, n := range report.Counts() {
		counts[string(state)] = n
	}
	return counts
}

func stateIcon(state sync.State) string {
	switch state {
	case sync.StateInSync:
		return "●"
	case sync.StateNewFile, sync.StateNewBlock:
		return "○"
	case sync.StatePendingFromFile, sync.StatePendingFromBlock:
		return "◐"
	case sync.StateConflict:
		return "✗"
	default:
		return "?"
	}
}
