package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgrunwald/docdex/internal/client"
)

// fakeBackend implements Backend with scripted responses per file/task.
type fakeBackend struct {
	mu sync.Mutex

	duplicates []string
	dupErr     error
	dupCalls   int

	uploadResults map[string]*client.UploadResult
	uploadErrs    map[string]error
	uploaded      []string

	statuses  map[string][]client.JobSnapshot
	statusIdx map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		uploadResults: map[string]*client.UploadResult{},
		uploadErrs:    map[string]error{},
		statuses:      map[string][]client.JobSnapshot{},
		statusIdx:     map[string]int{},
	}
}

func (f *fakeBackend) CheckDuplicates(context.Context, []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dupCalls++
	return f.duplicates, f.dupErr
}

func (f *fakeBackend) Upload(_ context.Context, fileName string, content io.Reader, _ string) (*client.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.ReadAll(content)
	f.uploaded = append(f.uploaded, fileName)
	if err := f.uploadErrs[fileName]; err != nil {
		return nil, err
	}
	if res := f.uploadResults[fileName]; res != nil {
		return res, nil
	}
	return &client.UploadResult{TaskID: "task-" + fileName}, nil
}

func (f *fakeBackend) JobStatus(_ context.Context, taskID string) (*client.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.statuses[taskID]
	if len(seq) == 0 {
		return &client.JobSnapshot{Status: client.StageDone}, nil
	}
	i := f.statusIdx[taskID]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	f.statusIdx[taskID]++
	snap := seq[i]
	return &snap, nil
}

func memFile(name string) BatchFile {
	return BatchFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.4")), nil
		},
	}
}

func testOrchestrator(backend *fakeBackend, store *fakeStore) *Orchestrator {
	return NewOrchestrator(backend, store, Options{
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 20,
		RetainWindow:    time.Hour,
	})
}

func runBatch(t *testing.T, o *Orchestrator, files []BatchFile, force bool) *BatchSession {
	t.Helper()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	session := NewSession(names, time.Minute)
	o.RunBatch(context.Background(), session, files, "scope:x", "acme", force)
	return session
}

func TestRunBatchSkipsDuplicates(t *testing.T) {
	backend := newFakeBackend()
	backend.duplicates = []string{"b.pdf"}
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("a.pdf"), memFile("b.pdf"), memFile("c.pdf")}, false)

	task, _ := session.Task("b.pdf")
	if task.Status != StatusDone || !strings.Contains(task.Message, "skipped") {
		t.Errorf("duplicate task = %+v, want done/skipped", task)
	}
	for _, name := range backend.uploaded {
		if name == "b.pdf" {
			t.Error("duplicate file must not be uploaded")
		}
	}
	if len(backend.uploaded) != 2 {
		t.Errorf("uploaded %v, want a.pdf and c.pdf", backend.uploaded)
	}
	done, failed := session.Counts()
	if done != 3 || failed != 0 {
		t.Errorf("Counts() = (%d, %d), want (3, 0)", done, failed)
	}
	if !session.Finished() {
		t.Error("session must be finished after RunBatch")
	}
}

func TestRunBatchUploadsSequentially(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	runBatch(t, o, []BatchFile{memFile("1.pdf"), memFile("2.pdf"), memFile("3.pdf")}, false)

	want := []string{"1.pdf", "2.pdf", "3.pdf"}
	if len(backend.uploaded) != len(want) {
		t.Fatalf("uploaded %v, want %v", backend.uploaded, want)
	}
	for i := range want {
		if backend.uploaded[i] != want[i] {
			t.Errorf("upload order = %v, want input order %v", backend.uploaded, want)
		}
	}
}

func TestRunBatchForceBypassesDuplicateCheck(t *testing.T) {
	backend := newFakeBackend()
	backend.duplicates = []string{"a.pdf"}
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("a.pdf")}, true)

	if backend.dupCalls != 0 {
		t.Errorf("duplicate check called %d times with force, want 0", backend.dupCalls)
	}
	if len(backend.uploaded) != 1 {
		t.Errorf("uploaded %v, want a.pdf despite being a known duplicate", backend.uploaded)
	}
	task, _ := session.Task("a.pdf")
	if task.Status != StatusDone {
		t.Errorf("task = %+v, want done", task)
	}
}

func TestRunBatchIsolatesUploadFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadErrs["a.pdf"] = client.ErrTimeout
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("a.pdf"), memFile("b.pdf")}, false)

	taskA, _ := session.Task("a.pdf")
	if taskA.Status != StatusError || !strings.Contains(taskA.Message, "timed out") {
		t.Errorf("a.pdf = %+v, want error with timeout message", taskA)
	}
	taskB, _ := session.Task("b.pdf")
	if taskB.Status != StatusDone {
		t.Errorf("b.pdf = %+v, want done: one failure must not halt the batch", taskB)
	}
}

func TestRunBatchServerSideSkip(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadResults["a.pdf"] = &client.UploadResult{Skipped: true}
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("a.pdf")}, false)

	task, _ := session.Task("a.pdf")
	if task.Status != StatusDone || !strings.Contains(task.Message, "skipped") {
		t.Errorf("task = %+v, want done/skipped", task)
	}
	if len(store.created) != 0 {
		t.Errorf("server-side skip must not register metadata, created %v", store.created)
	}
}

func TestRunBatchRegistersIndexedFile(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses["task-report.pdf"] = []client.JobSnapshot{
		{Status: client.StageExtracting},
		{Status: client.StageEmbedding, Progress: floatp(47)},
		{Status: client.StageSaving},
		{Status: client.StageDone, Pages: 12, Chunks: 80},
	}
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("report.pdf")}, false)

	if len(store.created) != 1 {
		t.Fatalf("created %d records, want 1", len(store.created))
	}
	got := store.created[0]
	if got.ScopeID != "scope:x" || got.Title != "report" || got.FileName != "report.pdf" {
		t.Errorf("registered record = %+v", got)
	}
	if got.Pages != 12 || got.Chunks != 80 {
		t.Errorf("registered counts = %d pages, %d chunks, want 12/80", got.Pages, got.Chunks)
	}

	task, _ := session.Task("report.pdf")
	if task.Status != StatusDone || task.Progress != 100 {
		t.Errorf("task = %+v, want done at 100", task)
	}
	if !strings.Contains(task.Message, "12 pages") || !strings.Contains(task.Message, "80 chunks") {
		t.Errorf("message = %q, want the indexing summary", task.Message)
	}
}

func TestRunBatchMarksJobErrorAsFailed(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses["task-a.pdf"] = []client.JobSnapshot{
		{Status: client.StageExtracting},
		{Status: client.StageError, Message: "corrupt pdf"},
	}
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	session := runBatch(t, o, []BatchFile{memFile("a.pdf")}, false)

	task, _ := session.Task("a.pdf")
	if task.Status != StatusError || task.Message != "corrupt pdf" {
		t.Errorf("task = %+v, want error with the backend's message", task)
	}
	if len(store.created) != 0 {
		t.Error("failed job must not be registered")
	}
}

func TestRunBatchOpenFailure(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()
	o := testOrchestrator(backend, store)

	broken := BatchFile{
		Name: "gone.pdf",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("no such file") },
	}
	session := runBatch(t, o, []BatchFile{broken, memFile("ok.pdf")}, false)

	task, _ := session.Task("gone.pdf")
	if task.Status != StatusError {
		t.Errorf("gone.pdf = %+v, want error", task)
	}
	if len(backend.uploaded) != 1 || backend.uploaded[0] != "ok.pdf" {
		t.Errorf("uploaded %v, want only ok.pdf", backend.uploaded)
	}
}

func TestRunBatchRefreshHookAndEviction(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()

	refreshed := false
	o := NewOrchestrator(backend, store, Options{
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 20,
		RetainWindow:    10 * time.Millisecond,
		Refresh:         func(context.Context) { refreshed = true },
	})

	session := runBatch(t, o, []BatchFile{memFile("a.pdf")}, false)

	if !refreshed {
		t.Error("refresh hook must run after the batch")
	}
	if session.Evicted() {
		t.Error("eviction must wait for the retention window")
	}

	deadline := time.Now().Add(time.Second)
	for !session.Evicted() {
		if time.Now().After(deadline) {
			t.Fatal("session not evicted within a second")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if tasks := session.Tasks(); tasks != nil {
		t.Errorf("Tasks() after eviction = %v, want nil", tasks)
	}
}

func TestRunBatchPollCeilingProducesTimeoutError(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses["task-slow.pdf"] = []client.JobSnapshot{
		{Status: client.StageExtracting},
	}
	store := newFakeStore()
	o := NewOrchestrator(backend, store, Options{
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 3,
		RetainWindow:    time.Hour,
	})

	session := runBatch(t, o, []BatchFile{memFile("slow.pdf")}, false)

	task, _ := session.Task("slow.pdf")
	if task.Status != StatusError || !strings.Contains(task.Message, "timed out") {
		t.Errorf("task = %+v, want a synthetic timeout error", task)
	}
}
