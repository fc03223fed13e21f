package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/memsync-oss/memsync/internal/config"
	"github.com/memsync-oss/memsync/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [agent-id]",
	Short: "Show recent sync runs",
	Long: `List recent sync runs from the journal, newest first. With no agent id
runs for every agent are shown.

Examples:
  memsync history
  memsync history agent-1c0d6c80 --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	agentID := ""
	if len(args) == 1 {
		agentID = args[0]
	}

	// History is local-only; no remote client is needed.
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if memoryRoot != "" {
		cfg.Journal.Path = filepath.Join(memoryRoot, ".memsync", "journal.db")
	}

	jm, err := journal.NewManager(cfg.Journal.Driver, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	defer jm.Close()

	runs, err := jm.ListRuns(agentID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Println("Recent Runs:")
	fmt.Println("------------")
	for _, run := range runs {
		fmt.Printf("%s %s  %s %s  (%s)\n",
			runIcon(run.Status),
			run.ID[:8],
			run.Command,
			run.AgentID,
			run.Status,
		)
		fmt.Printf("   Started: %s\n", run.StartedAt.Format(time.RFC3339))
		if !run.CompletedAt.IsZero() {
			fmt.Printf("   Completed: %s (duration: %s)\n",
				run.CompletedAt.Format(time.RFC3339),
				run.Duration().Round(time.Millisecond),
			)
		}
		if run.Error != "" {
			fmt.Printf("   Error: %s\n", run.Error)
		}
		if len(run.Counts) > 0 {
			fmt.Printf("   Labels:")
			for state, n := range run.Counts {
				fmt.Printf(" %s=%d", state, n)
			}
			fmt.Println()
		}
		if run.ReportPath != "" {
			fmt.Printf("   Report: %s\n", run.ReportPath)
		}
		fmt.Println()
	}
	return nil
}

func runIcon(status string) string {
	switch status {
	case "running":
		return "◐"
	case "completed":
		return "●"
	case "failed":
		return "✗"
	default:
		return "?"
	}
}
