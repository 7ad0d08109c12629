package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the indexing backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := backend.Health(ctx)
	if err != nil {
		fmt.Printf("%s %s\n", defaultTheme.errorStyle().Render("✗"), cfg.BackendURL)
		return fmt.Errorf("backend unreachable: %w", err)
	}

	fmt.Printf("%s %s (%s)\n", defaultTheme.completedStyle().Render("✓"), cfg.BackendURL, status.Status)
	return nil
}
