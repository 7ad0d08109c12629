package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgrunwald/docdex/internal/client"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the current state of one indexing job",
	Long: `Show a one-shot snapshot of an indexing job.

Useful after detaching from a running batch: the task IDs are written
to the log file.

Examples:
  docdex status 3f2a9c71`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	snap, err := backend.JobStatus(context.Background(), taskID)
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	fmt.Printf("Task: %s\n", taskID)
	fmt.Printf("  Status: %s\n", snap.Status)
	if snap.Message != "" {
		fmt.Printf("  Message: %s\n", snap.Message)
	}
	if snap.Progress != nil {
		fmt.Printf("  Progress: %.0f%%\n", *snap.Progress)
	}
	if snap.Status == client.StageDone {
		fmt.Printf("  Pages: %d\n", snap.Pages)
		fmt.Printf("  Chunks: %d\n", snap.Chunks)
	}

	return nil
}
