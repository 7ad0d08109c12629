package ingest

import (
	"context"
	"log/slog"
)

// DuplicateChecker is the backend's batch duplicate-check endpoint.
type DuplicateChecker interface {
	CheckDuplicates(ctx context.Context, fileNames []string) ([]string, error)
}

// TitleLister reads registered document titles from the metadata store.
type TitleLister interface {
	ListDocumentTitles(ctx context.Context, scopeID string) ([]string, error)
}

// DuplicateDetector decides which candidate files are already indexed.
// The backend's own index is authoritative; the metadata store serves as a
// best-effort fallback when the backend endpoint is unreachable.
type DuplicateDetector struct {
	backend DuplicateChecker
	store   TitleLister
}

// NewDuplicateDetector creates a detector over the given sources.
func NewDuplicateDetector(backend DuplicateChecker, store TitleLister) *DuplicateDetector {
	return &DuplicateDetector{backend: backend, store: store}
}

// Detect returns the subset of candidate names already indexed. It never
// fails: any error degrades to the fallback source or to an empty set, so
// duplicate detection can never block a batch.
func (d *DuplicateDetector) Detect(ctx context.Context, scopeID string, fileNames []string) map[string]struct{} {
	if len(fileNames) == 0 {
		return map[string]struct{}{}
	}

	duplicates, err := d.backend.CheckDuplicates(ctx, fileNames)
	if err == nil {
		set := make(map[string]struct{}, len(duplicates))
		for _, name := range duplicates {
			set[name] = struct{}{}
		}
		return set
	}
	slog.Warn("backend duplicate check failed, falling back to metadata store", "error", err)

	titles, err := d.store.ListDocumentTitles(ctx, scopeID)
	if err != nil {
		slog.Warn("metadata fallback failed, assuming no duplicates", "error", err)
		return map[string]struct{}{}
	}

	known := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		known[title] = struct{}{}
	}

	set := make(map[string]struct{})
	for _, name := range fileNames {
		if _, ok := known[DerivedTitle(name)]; ok {
			set[name] = struct{}{}
		}
	}
	return set
}
