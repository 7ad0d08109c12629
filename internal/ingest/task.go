// Package ingest drives batches of PDF uploads through the backend's
// asynchronous indexing pipeline and tracks per-file progress.
package ingest

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the display state of one file in a batch.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusSaving     Status = "saving"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Active reports whether the file currently has an in-flight operation.
func (s Status) Active() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusSaving:
		return true
	}
	return false
}

// FileTask is the per-file status record the UI renders. One exists per
// file in the active batch, keyed by the file's display name.
type FileTask struct {
	FileName      string
	Status        Status
	Message       string
	Progress      int // 0-100, non-decreasing while non-terminal
	LastUpdatedAt time.Time
}

// DerivedTitle strips the format extension from a file name, yielding the
// title documents are registered under.
func DerivedTitle(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
