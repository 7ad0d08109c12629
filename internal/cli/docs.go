package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgrunwald/docdex/internal/models"
)

var (
	docsScope       string
	docsDeleteForce bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List registered documents",
	Long: `List the documents registered in the metadata catalog.

Examples:
  docdex docs
  docdex docs --scope acme
  docdex docs delete "setup-manual" --scope acme`,
	Args: cobra.NoArgs,
	RunE: runDocs,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <title>",
	Short: "Delete one document record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

func init() {
	docsCmd.Flags().StringVarP(&docsScope, "scope", "s", "", "only documents in this scope")

	docsDeleteCmd.Flags().StringVarP(&docsScope, "scope", "s", "", "scope the document belongs to")
	docsDeleteCmd.Flags().BoolVarP(&docsDeleteForce, "force", "f", false, "skip confirmation")
	_ = docsDeleteCmd.MarkFlagRequired("scope")

	docsCmd.AddCommand(docsDeleteCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	scopeID := ""
	if docsScope != "" {
		scope, err := dbClient.GetScopeByName(ctx, docsScope)
		if err != nil {
			return fmt.Errorf("look up scope %q: %w", docsScope, err)
		}
		if scope == nil {
			return fmt.Errorf("scope not found: %s", docsScope)
		}
		scopeID, err = models.RecordIDString(scope.ID)
		if err != nil {
			return fmt.Errorf("scope record id: %w", err)
		}
	}

	docs, err := dbClient.ListDocuments(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	fmt.Printf("%-30s %-25s %6s %7s %s\n", "TITLE", "FILE", "PAGES", "CHUNKS", "UPLOADED")
	fmt.Println(strings.Repeat("-", 88))
	for _, doc := range docs {
		fmt.Printf("%-30s %-25s %6d %7d %s\n",
			doc.Title, doc.FileName, doc.Pages, doc.Chunks, doc.UploadedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	title := args[0]
	ctx := context.Background()

	scope, err := dbClient.GetScopeByName(ctx, docsScope)
	if err != nil {
		return fmt.Errorf("look up scope %q: %w", docsScope, err)
	}
	if scope == nil {
		return fmt.Errorf("scope not found: %s", docsScope)
	}
	scopeID, err := models.RecordIDString(scope.ID)
	if err != nil {
		return fmt.Errorf("scope record id: %w", err)
	}

	doc, err := dbClient.GetDocumentByTitle(ctx, scopeID, title)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", title)
	}

	if !docsDeleteForce && !confirm(fmt.Sprintf("About to delete: %s (%s)", doc.Title, doc.FileName)) {
		fmt.Println("Cancelled.")
		return nil
	}

	docID, err := models.RecordIDString(doc.ID)
	if err != nil {
		return fmt.Errorf("document record id: %w", err)
	}
	if err := dbClient.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	fmt.Printf("Deleted: %s\n", doc.Title)
	return nil
}

// confirm prompts for a yes/no answer on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s\n\nContinue? [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
