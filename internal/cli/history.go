package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/asteroid-belt/matchbox/internal/config"
	"github.com/asteroid-belt/matchbox/internal/db"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ranking runs",
	Long: `Show recent ranking runs.

Without flags, lists the most recent runs. Use --run to show the full
result list of one run.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show one run's results by ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("history", fmt.Errorf("load config: %w", err))
	}

	paths := config.GetPaths(cfg)
	database, err := db.New(db.DefaultConfig(paths.Database))
	if err != nil {
		return trackCLIError("history", fmt.Errorf("initialize database: %w", err))
	}
	defer func() { _ = database.Close() }()

	if historyRunID != "" {
		return showRun(database, historyRunID)
	}
	return listRuns(database, historyLimit)
}

func listRuns(database *db.DB, limit int) error {
	runs, err := database.RecentRuns(limit)
	if err != nil {
		return trackCLIError("history", fmt.Errorf("list runs: %w", err))
	}

	if len(runs) == 0 {
		fmt.Println("No ranking runs recorded yet.")
		fmt.Println("\nUse 'matchbox rank' to rank job postings.")
		return nil
	}

	fmt.Printf("RANKING RUNS (%d)\n", len(runs))
	fmt.Println("──────────────────────────────────────────────────")
	for _, run := range runs {
		fmt.Printf("  %s\n", run.ID)
		fmt.Printf("    %s  %d jobs, top %d, %s\n",
			formatTimeSince(run.CreatedAt),
			run.JobCount,
			run.TopK,
			time.Duration(run.DurationMs)*time.Millisecond,
		)
		fmt.Println()
	}
	return nil
}

func showRun(database *db.DB, id string) error {
	run, err := database.GetRun(id)
	if err != nil {
		return trackCLIError("history", fmt.Errorf("load run %s: %w", id, err))
	}

	fmt.Printf("RUN %s (%s, %d jobs)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04"), run.JobCount)
	fmt.Println("──────────────────────────────────────────────────")
	for _, r := range run.Results {
		fmt.Printf("%3d. %s  score %.3f (similarity %.3f, skills %.3f)\n",
			r.Rank, r.JobID, r.Composite, r.Similarity, r.SkillScore)
	}
	return nil
}

// formatTimeSince formats a duration since a time in a human-readable way.
func formatTimeSince(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
