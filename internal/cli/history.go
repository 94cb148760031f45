package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent photo imports",
	Long: `List recent photo imports and how they ended.

Examples:
  mealpix history
  mealpix history --limit 50`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of imports to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	records, err := histStore.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("list imports: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No imports yet")
		return nil
	}

	fmt.Printf("%-12s %-10s %-20s %s\n", "JOB", "STATUS", "FINISHED", "PHOTO")
	fmt.Println("----------------------------------------------------------------------")

	for _, rec := range records {
		jobID := rec.JobID
		if jobID == "" {
			jobID = "-"
		}
		fmt.Printf("%-12s %-10s %-20s %s\n",
			jobID, rec.Status, rec.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			filepath.Base(rec.AssetPath))
		if rec.Error != "" {
			fmt.Printf("  %s\n", rec.Error)
		}
	}

	return nil
}
