package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/mgrunwald/docdex/internal/db"
	"github.com/mgrunwald/docdex/internal/models"
)

// MetadataStore is the slice of the metadata store the ingestion pipeline
// needs. *db.Client satisfies it.
type MetadataStore interface {
	TitleLister
	GetDocumentByTitle(ctx context.Context, scopeID, title string) (*models.Document, error)
	CreateDocument(ctx context.Context, input models.DocumentInput) (*models.Document, error)
	UpdateDocument(ctx context.Context, docID string, pages, chunks int) error
}

// Registrar writes metadata records for successfully indexed files.
type Registrar struct {
	store MetadataStore
}

// NewRegistrar creates a registrar over the metadata store.
func NewRegistrar(store MetadataStore) *Registrar {
	return &Registrar{store: store}
}

// RegisterIfAbsent writes a record for (scopeID, title) unless one already
// exists, keeping registration idempotent under retried batches. A forced
// re-ingest of an existing document refreshes its extraction counts instead
// of inserting a second record. The check-then-insert has a narrow race
// window; the store's unique index turns the losing insert into an
// "already exists" error, which is treated the same as finding the record.
func (r *Registrar) RegisterIfAbsent(ctx context.Context, scopeID, title string, input models.DocumentInput) error {
	existing, err := r.store.GetDocumentByTitle(ctx, scopeID, title)
	if err != nil {
		return fmt.Errorf("check existing record: %w", err)
	}
	if existing != nil {
		if input.Pages == existing.Pages && input.Chunks == existing.Chunks {
			return nil
		}
		docID, err := models.RecordIDString(existing.ID)
		if err != nil {
			return fmt.Errorf("existing record id: %w", err)
		}
		if err := r.store.UpdateDocument(ctx, docID, input.Pages, input.Chunks); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	}

	input.ScopeID = scopeID
	input.Title = title
	if _, err := r.store.CreateDocument(ctx, input); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}
