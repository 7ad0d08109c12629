package ingest

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Patch is a partial status update for one file. Nil Progress leaves the
// current percentage untouched.
type Patch struct {
	Status   Status
	Message  string
	Progress *int
}

// BatchSession owns the task list for one ingestion run. The orchestrator
// is the only writer; the progress UI reads concurrently, hence the lock.
type BatchSession struct {
	ID string

	mu         sync.RWMutex
	order      []string
	tasks      map[string]*FileTask
	stallAfter time.Duration
	finished   bool
	evicted    bool

	now func() time.Time
}

// NewSession creates a session with one Waiting task per file name.
// Names are expected to be unique within the batch.
func NewSession(fileNames []string, stallAfter time.Duration) *BatchSession {
	s := &BatchSession{
		ID:         uuid.New().String()[:8],
		order:      make([]string, 0, len(fileNames)),
		tasks:      make(map[string]*FileTask, len(fileNames)),
		stallAfter: stallAfter,
		now:        time.Now,
	}
	for _, name := range fileNames {
		if _, dup := s.tasks[name]; dup {
			continue
		}
		s.order = append(s.order, name)
		s.tasks[name] = &FileTask{
			FileName:      name,
			Status:        StatusWaiting,
			Message:       "waiting",
			LastUpdatedAt: s.now(),
		}
	}
	return s
}

// Apply atomically applies a status patch to one file and stamps its update
// time. Patches against terminal tasks are ignored: a file that needs
// retrying is resubmitted in a new batch, not mutated in place. Progress is
// kept non-decreasing while the task is non-terminal; Done pins it to 100.
func (s *BatchSession) Apply(fileName string, p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[fileName]
	if !ok || task.Status.Terminal() {
		return
	}

	task.Status = p.Status
	task.Message = p.Message
	if p.Progress != nil {
		next := *p.Progress
		if next < 0 {
			next = 0
		}
		if next > 100 {
			next = 100
		}
		if next > task.Progress || p.Status == StatusError {
			task.Progress = next
		}
	}
	if p.Status == StatusDone {
		task.Progress = 100
	}
	task.LastUpdatedAt = s.now()
}

// Task returns a copy of one file's record.
func (s *BatchSession) Task(fileName string) (FileTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[fileName]
	if !ok {
		return FileTask{}, false
	}
	return *task, true
}

// Tasks returns a display-ordered copy of the batch: active entries first,
// then waiting, error, done, keeping input order within each group. Stalled
// non-terminal entries get an advisory note appended to their message; the
// status itself never changes on a stall.
func (s *BatchSession) Tasks() []FileTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.evicted {
		return nil
	}

	now := s.now()
	out := make([]FileTask, 0, len(s.order))
	for _, name := range s.order {
		task := *s.tasks[name]
		if !task.Status.Terminal() {
			if age := now.Sub(task.LastUpdatedAt); age > s.stallAfter {
				task.Message = fmt.Sprintf("%s (no update received for %ds)", task.Message, int(age.Seconds()))
			}
		}
		out = append(out, task)
	}

	slices.SortStableFunc(out, func(a, b FileTask) int {
		return displayRank(a.Status) - displayRank(b.Status)
	})
	return out
}

func displayRank(s Status) int {
	switch {
	case s.Active():
		return 0
	case s == StatusWaiting:
		return 1
	case s == StatusError:
		return 2
	default: // done
		return 3
	}
}

// Counts returns how many tasks are done respectively failed.
func (s *BatchSession) Counts() (done, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.tasks {
		switch task.Status {
		case StatusDone:
			done++
		case StatusError:
			failed++
		}
	}
	return done, failed
}

// Finish marks the batch as fully processed.
func (s *BatchSession) Finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
}

// Finished reports whether every file has been driven to a terminal state.
func (s *BatchSession) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// Evict clears the visible task list after the retention window. The
// session itself stays valid; Tasks simply reports nothing.
func (s *BatchSession) Evict() {
	s.mu.Lock()
	s.evicted = true
	s.mu.Unlock()
}

// Evicted reports whether the display window has passed.
func (s *BatchSession) Evicted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}
