package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgrunwald/docdex/internal/models"
)

var scopesDeleteForce bool

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List scopes",
	Long: `List the scopes documents are organized under.

Examples:
  docdex scopes
  docdex scopes delete acme`,
	Args: cobra.NoArgs,
	RunE: runScopes,
}

var scopesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a scope and all its document records",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopesDelete,
}

func init() {
	scopesDeleteCmd.Flags().BoolVarP(&scopesDeleteForce, "force", "f", false, "skip confirmation")
	scopesCmd.AddCommand(scopesDeleteCmd)
}

func runScopes(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	scopes, err := dbClient.ListScopes(ctx)
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}

	if len(scopes) == 0 {
		fmt.Println("No scopes found")
		return nil
	}

	fmt.Printf("%-25s %-8s %10s %s\n", "NAME", "KIND", "DOCUMENTS", "CREATED")
	fmt.Println(strings.Repeat("-", 64))
	for _, scope := range scopes {
		scopeID, err := models.RecordIDString(scope.ID)
		if err != nil {
			return fmt.Errorf("scope record id: %w", err)
		}
		docs, err := dbClient.ListDocuments(ctx, scopeID)
		if err != nil {
			return fmt.Errorf("list documents for %s: %w", scope.Name, err)
		}
		fmt.Printf("%-25s %-8s %10d %s\n",
			scope.Name, scope.Kind, len(docs), scope.CreatedAt.Format("2006-01-02"))
	}

	return nil
}

func runScopesDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := context.Background()

	scope, err := dbClient.GetScopeByName(ctx, name)
	if err != nil {
		return fmt.Errorf("look up scope %q: %w", name, err)
	}
	if scope == nil {
		return fmt.Errorf("scope not found: %s", name)
	}
	scopeID, err := models.RecordIDString(scope.ID)
	if err != nil {
		return fmt.Errorf("scope record id: %w", err)
	}

	docs, err := dbClient.ListDocuments(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if !scopesDeleteForce && !confirm(fmt.Sprintf("About to delete scope %s and %d document records", name, len(docs))) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := dbClient.DeleteScope(ctx, scopeID); err != nil {
		return fmt.Errorf("delete scope: %w", err)
	}

	fmt.Printf("Deleted scope: %s (%d document records)\n", name, len(docs))
	return nil
}
