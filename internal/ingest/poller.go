package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mgrunwald/docdex/internal/client"
)

// ErrPollExhausted indicates the attempt ceiling was reached without a
// terminal result.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// PollUntil fetches on a fixed interval until isTerminal reports true or
// maxAttempts fetches have been made. Fetch errors are treated as transient
// and simply skipped; the attempt ceiling and ctx are the only abort
// conditions. Exactly maxAttempts fetches are made in the worst case.
func PollUntil[T any](
	ctx context.Context,
	interval time.Duration,
	maxAttempts int,
	fetch func(context.Context) (T, error),
	isTerminal func(T) bool,
) (T, error) {
	var zero T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(interval):
			}
		}

		result, err := fetch(ctx)
		if err != nil {
			// Transient blip mid-loop; retry on the next tick.
			continue
		}
		if isTerminal(result) {
			return result, nil
		}
	}
	return zero, ErrPollExhausted
}

// StatusFetcher reads the backend's job status endpoint.
type StatusFetcher interface {
	JobStatus(ctx context.Context, taskID string) (*client.JobSnapshot, error)
}

// JobPoller polls one job handle to a terminal snapshot.
type JobPoller struct {
	backend     StatusFetcher
	interval    time.Duration
	maxAttempts int
}

// NewJobPoller creates a poller with the given tick interval and attempt
// ceiling.
func NewJobPoller(backend StatusFetcher, interval time.Duration, maxAttempts int) *JobPoller {
	return &JobPoller{backend: backend, interval: interval, maxAttempts: maxAttempts}
}

// Poll queries the job until the backend reports done, error or not_found.
// Intermediate snapshots are forwarded to onProgress. If the attempt
// ceiling passes without a terminal snapshot, a synthetic error snapshot
// with a timeout message is returned; this is the only place a
// "taking too long" failure is fabricated rather than reported.
func (p *JobPoller) Poll(ctx context.Context, taskID string, onProgress func(client.JobSnapshot)) client.JobSnapshot {
	snap, err := PollUntil(ctx, p.interval, p.maxAttempts,
		func(ctx context.Context) (*client.JobSnapshot, error) {
			snap, err := p.backend.JobStatus(ctx, taskID)
			if err != nil {
				return nil, err
			}
			if !snap.Terminal() && onProgress != nil {
				onProgress(*snap)
			}
			return snap, nil
		},
		func(snap *client.JobSnapshot) bool { return snap.Terminal() },
	)
	if errors.Is(err, ErrPollExhausted) {
		return client.JobSnapshot{
			Status: client.StageError,
			Message: fmt.Sprintf("processing timed out after %s: the server may be overloaded or stuck",
				time.Duration(p.maxAttempts)*p.interval),
		}
	}
	if err != nil {
		return client.JobSnapshot{
			Status:  client.StageError,
			Message: fmt.Sprintf("polling aborted: %v", err),
		}
	}
	return *snap
}

// stageProgress maps coarse backend stages to representative percentages
// so the UI has a monotonic-looking number even without explicit progress.
var stageProgress = map[string]int{
	client.StageExtracting: 10,
	client.StageEmbedding:  30,
	client.StageSaving:     95,
	client.StageDone:       100,
}

// NormalizedProgress returns the snapshot's explicit progress clamped to
// [0,100] and rounded, or the stage-mapped default when absent.
func NormalizedProgress(snap client.JobSnapshot) int {
	if snap.Progress != nil {
		p := int(math.Round(*snap.Progress))
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		return p
	}
	if p, ok := stageProgress[snap.Status]; ok {
		return p
	}
	return 0
}

// StageStatus translates a backend stage into the file's display status.
func StageStatus(stage string) Status {
	switch stage {
	case client.StageExtracting, client.StageEmbedding:
		return StatusProcessing
	case client.StageSaving:
		return StatusSaving
	case client.StageDone:
		return StatusDone
	default: // error, not_found, anything unknown
		return StatusError
	}
}
