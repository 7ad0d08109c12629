// Package cli provides the command-line interface for docdex.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgrunwald/docdex/internal/client"
	"github.com/mgrunwald/docdex/internal/config"
	"github.com/mgrunwald/docdex/internal/db"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and clients
	cfg      config.Config
	dbClient *db.Client
	backend  *client.Client

	closeLog func() error
)

// commandNeedsStore reports whether a command touches the metadata store.
// Backend-only commands work even when SurrealDB is down.
func commandNeedsStore(name string) bool {
	switch name {
	case "version", "help", "health", "status":
		return false
	}
	return true
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docdex",
	Short: "Operator console for the document-indexing backend",
	Long: `Docdex uploads PDF documents into the document-indexing backend and
tracks each file through extraction, embedding and saving.

Batches are checked for duplicates before upload, driven strictly one
file at a time, and every successfully indexed file is registered in
the SurrealDB metadata catalog.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config
		cfg = config.Load()

		logger, closer := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		closeLog = closer

		backend = client.New(cfg.BackendURL, cfg.UploadTimeout)

		if !commandNeedsStore(cmd.Name()) {
			return nil
		}

		// Connect to the metadata store
		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to metadata store: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close metadata store: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(scopesCmd)
	rootCmd.AddCommand(healthCmd)
}
