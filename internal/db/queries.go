// Package db provides SurrealDB query functions for scopes and documents.
package db

import (
	"context"
	"fmt"

	"github.com/mgrunwald/docdex/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// =============================================================================
// SCOPE QUERIES
// =============================================================================

// CreateScope creates a taxonomy node. Names are unique across scopes.
func (c *Client) CreateScope(ctx context.Context, input models.ScopeInput) (*models.Scope, error) {
	vars := map[string]any{
		"name": input.Name,
		"kind": input.Kind,
	}
	sql := `CREATE scope SET name = $name, kind = $kind`
	if input.Parent != nil {
		sql += `, parent = type::record("scope", $parent)`
		vars["parent"] = *input.Parent
	}

	results, err := surrealdb.Query[[]models.Scope](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("create scope: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create scope: empty result")
	}
	return &(*results)[0].Result[0], nil
}

// GetScopeByName retrieves a scope by its unique name.
// Returns nil if not found.
func (c *Client) GetScopeByName(ctx context.Context, name string) (*models.Scope, error) {
	results, err := surrealdb.Query[[]models.Scope](ctx, c.db, `
		SELECT * FROM scope WHERE name = $name LIMIT 1
	`, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("get scope: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListScopes returns all scopes ordered by name.
func (c *Client) ListScopes(ctx context.Context) ([]models.Scope, error) {
	results, err := surrealdb.Query[[]models.Scope](ctx, c.db, `
		SELECT * FROM scope ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Scope{}, nil
	}
	return (*results)[0].Result, nil
}

// DeleteScope removes a scope and cascades to its documents.
func (c *Client) DeleteScope(ctx context.Context, scopeID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE document WHERE scope = type::record("scope", $id);
		DELETE type::record("scope", $id);
	`, map[string]any{"id": scopeID})
	if err != nil {
		return fmt.Errorf("delete scope: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENT QUERIES
// =============================================================================

// CreateDocument inserts a metadata record. The unique (scope, title) index
// rejects duplicates with ErrAlreadyExists.
func (c *Client) CreateDocument(ctx context.Context, input models.DocumentInput) (*models.Document, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		CREATE document SET
			scope = type::record("scope", $scope),
			title = $title,
			file_name = $file_name,
			pages = $pages,
			chunks = $chunks
	`, map[string]any{
		"scope":     input.ScopeID,
		"title":     input.Title,
		"file_name": input.FileName,
		"pages":     input.Pages,
		"chunks":    input.Chunks,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create document: empty result")
	}
	return &(*results)[0].Result[0], nil
}

// GetDocumentByTitle retrieves the record for a (scope, title) pair.
// Returns nil if not found.
func (c *Client) GetDocumentByTitle(ctx context.Context, scopeID, title string) (*models.Document, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		SELECT * FROM document
		WHERE scope = type::record("scope", $scope) AND title = $title
		LIMIT 1
	`, map[string]any{"scope": scopeID, "title": title})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListDocuments returns metadata records, optionally filtered by scope.
// Pass an empty scopeID to list all documents.
func (c *Client) ListDocuments(ctx context.Context, scopeID string) ([]models.Document, error) {
	sql := `SELECT * FROM document ORDER BY title`
	vars := map[string]any{}
	if scopeID != "" {
		sql = `SELECT * FROM document WHERE scope = type::record("scope", $scope) ORDER BY title`
		vars["scope"] = scopeID
	}

	results, err := surrealdb.Query[[]models.Document](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}

// ListDocumentTitles returns the titles registered under a scope. Used by the
// duplicate detector's fallback path.
func (c *Client) ListDocumentTitles(ctx context.Context, scopeID string) ([]string, error) {
	type titleRow struct {
		Title string `json:"title"`
	}

	results, err := surrealdb.Query[[]titleRow](ctx, c.db, `
		SELECT title FROM document WHERE scope = type::record("scope", $scope)
	`, map[string]any{"scope": scopeID})
	if err != nil {
		return nil, fmt.Errorf("list document titles: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []string{}, nil
	}
	titles := make([]string, 0, len((*results)[0].Result))
	for _, row := range (*results)[0].Result {
		titles = append(titles, row.Title)
	}
	return titles, nil
}

// UpdateDocument updates the extraction counts on an existing record.
func (c *Client) UpdateDocument(ctx context.Context, docID string, pages, chunks int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET pages = $pages, chunks = $chunks
	`, map[string]any{"id": docID, "pages": pages, "chunks": chunks})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// DeleteDocument removes a single metadata record.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("document", $id)
	`, map[string]any{"id": docID})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DeleteDocumentsByScope removes all records under a scope and returns the
// number deleted.
func (c *Client) DeleteDocumentsByScope(ctx context.Context, scopeID string) (int, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		DELETE document WHERE scope = type::record("scope", $scope) RETURN BEFORE
	`, map[string]any{"scope": scopeID})
	if err != nil {
		return 0, fmt.Errorf("delete documents by scope: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}
