package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mgrunwald/docdex/internal/client"
	"github.com/mgrunwald/docdex/internal/metrics"
	"github.com/mgrunwald/docdex/internal/models"
)

// Uploader submits one file as a multipart payload to the backend.
type Uploader interface {
	Upload(ctx context.Context, fileName string, content io.Reader, scopeName string) (*client.UploadResult, error)
}

// Backend is the slice of the document-processing backend the orchestrator
// drives. *client.Client satisfies it.
type Backend interface {
	DuplicateChecker
	Uploader
	StatusFetcher
}

// BatchFile is one file selected for ingestion. Open is called once, when
// the file's turn comes.
type BatchFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileFromPath builds a BatchFile backed by a file on disk.
func FileFromPath(path string) BatchFile {
	return BatchFile{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Options tunes an Orchestrator. Zero values fall back to the reference
// behavior (1s poll tick, 600 attempts, 5s retention).
type Options struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	RetainWindow    time.Duration

	// Metrics receives per-operation timings; nil disables collection.
	Metrics *metrics.Collector

	// Refresh is invoked once after every batch so the caller can reload
	// its metadata view; nil skips the refresh.
	Refresh func(ctx context.Context)
}

// Orchestrator drives a batch file-by-file through duplicate detection,
// upload, polling and metadata registration. Files are processed strictly
// sequentially to bound backend load from a single operator action; one
// file's failure never halts the batch.
type Orchestrator struct {
	backend   Backend
	detector  *DuplicateDetector
	poller    *JobPoller
	registrar *Registrar
	opts      Options
}

// NewOrchestrator wires the pipeline over a backend and a metadata store.
func NewOrchestrator(backend Backend, store MetadataStore, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = 600
	}
	if opts.RetainWindow <= 0 {
		opts.RetainWindow = 5 * time.Second
	}

	return &Orchestrator{
		backend:   backend,
		detector:  NewDuplicateDetector(backend, store),
		poller:    NewJobPoller(backend, opts.PollInterval, opts.PollMaxAttempts),
		registrar: NewRegistrar(store),
		opts:      opts,
	}
}

// RunBatch processes the files in input order. When force is false, files
// flagged by the precomputed duplicate check are marked Done immediately
// and contribute no network calls. After the last file the metadata view
// is refreshed and eviction of the visible progress list is scheduled.
func (o *Orchestrator) RunBatch(ctx context.Context, session *BatchSession, files []BatchFile, scopeID, scopeName string, force bool) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	duplicates := map[string]struct{}{}
	if !force {
		start := time.Now()
		duplicates = o.detector.Detect(ctx, scopeID, names)
		o.recordTiming(metrics.OpDuplicateCheck, time.Since(start))
	}

	slog.Info("batch started",
		"batch_id", session.ID, "files", len(files), "duplicates", len(duplicates), "force", force)

	for _, file := range files {
		if _, dup := duplicates[file.Name]; dup {
			session.Apply(file.Name, Patch{
				Status:  StatusDone,
				Message: "skipped, already indexed",
			})
			slog.Info("file skipped as duplicate", "batch_id", session.ID, "file", file.Name)
			continue
		}
		o.processFile(ctx, session, file, scopeID, scopeName)
	}

	if o.opts.Refresh != nil {
		o.opts.Refresh(ctx)
	}
	session.Finish()
	time.AfterFunc(o.opts.RetainWindow, session.Evict)

	done, failed := session.Counts()
	slog.Info("batch finished", "batch_id", session.ID, "done", done, "failed", failed)
}

// processFile drives one file through submit, poll and registration. All
// failures are contained here at file granularity.
func (o *Orchestrator) processFile(ctx context.Context, session *BatchSession, file BatchFile, scopeID, scopeName string) {
	zero := 0
	session.Apply(file.Name, Patch{Status: StatusUploading, Message: "uploading", Progress: &zero})

	content, err := file.Open()
	if err != nil {
		session.Apply(file.Name, Patch{Status: StatusError, Message: fmt.Sprintf("open file: %v", err)})
		return
	}

	start := time.Now()
	result, err := o.backend.Upload(ctx, file.Name, content, scopeName)
	_ = content.Close()
	o.recordTiming(metrics.OpUpload, time.Since(start))
	if err != nil {
		session.Apply(file.Name, Patch{Status: StatusError, Message: err.Error()})
		slog.Warn("upload failed", "batch_id", session.ID, "file", file.Name, "error", err)
		return
	}

	// Second, authoritative duplicate check: the backend may declare the
	// upload already indexed even when the batch check did not flag it.
	if result.Skipped {
		session.Apply(file.Name, Patch{Status: StatusDone, Message: "skipped, already indexed"})
		slog.Info("file skipped by server", "batch_id", session.ID, "file", file.Name)
		return
	}

	session.Apply(file.Name, Patch{Status: StatusProcessing, Message: "queued for extraction"})

	start = time.Now()
	snap := o.poller.Poll(ctx, result.TaskID, func(s client.JobSnapshot) {
		progress := NormalizedProgress(s)
		message := s.Message
		if message == "" {
			message = s.Status
		}
		session.Apply(file.Name, Patch{Status: StageStatus(s.Status), Message: message, Progress: &progress})
	})
	o.recordTiming(metrics.OpPoll, time.Since(start))

	if snap.Status != client.StageDone {
		message := snap.Message
		if message == "" {
			message = "indexing failed"
		}
		session.Apply(file.Name, Patch{Status: StatusError, Message: message})
		slog.Warn("indexing failed", "batch_id", session.ID, "file", file.Name, "status", snap.Status, "message", snap.Message)
		return
	}

	session.Apply(file.Name, Patch{Status: StatusSaving, Message: "registering metadata"})

	start = time.Now()
	err = o.registrar.RegisterIfAbsent(ctx, scopeID, DerivedTitle(file.Name), models.DocumentInput{
		FileName: file.Name,
		Pages:    snap.Pages,
		Chunks:   snap.Chunks,
	})
	o.recordTiming(metrics.OpRegister, time.Since(start))
	if err != nil {
		session.Apply(file.Name, Patch{Status: StatusError, Message: fmt.Sprintf("metadata registration: %v", err)})
		slog.Warn("registration failed", "batch_id", session.ID, "file", file.Name, "error", err)
		return
	}

	message := "indexed"
	if snap.Pages > 0 || snap.Chunks > 0 {
		message = fmt.Sprintf("indexed: %d pages, %d chunks", snap.Pages, snap.Chunks)
	}
	session.Apply(file.Name, Patch{Status: StatusDone, Message: message})
	slog.Info("file indexed", "batch_id", session.ID, "file", file.Name, "pages", snap.Pages, "chunks", snap.Chunks)
}

func (o *Orchestrator) recordTiming(op string, d time.Duration) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordTiming(op, d)
	}
}
