// Package client provides an HTTP client for the document-processing backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrTimeout indicates the backend did not answer an upload within the
// configured deadline. Distinct from connectivity errors so the operator
// sees "server may be overloaded" instead of "no connection".
var ErrTimeout = errors.New("request timed out: server may be overloaded")

// Backend job stages as reported by the status endpoint.
const (
	StageExtracting = "extracting"
	StageEmbedding  = "embedding"
	StageSaving     = "saving"
	StageDone       = "done"
	StageError      = "error"
	StageNotFound   = "not_found"
)

// Client talks to the document-processing backend over HTTP.
type Client struct {
	baseURL       string
	uploadTimeout time.Duration
	httpClient    *http.Client
}

// New creates a backend client. If baseURL is empty, uses the
// DOCDEX_BACKEND_URL env var or defaults to localhost:8000.
func New(baseURL string, uploadTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCDEX_BACKEND_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if uploadTimeout <= 0 {
		uploadTimeout = 120 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		uploadTimeout: uploadTimeout,
		httpClient:    &http.Client{},
	}
}

// HealthStatus is the backend's readiness report.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health queries the backend health endpoint. The request is abortable
// through ctx; callers typically wrap it in a short timeout.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health: %s", responseError(resp))
	}

	var health HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &health, nil
}

// CheckDuplicates asks the backend which of the candidate file names are
// already present in its index.
func (c *Client) CheckDuplicates(ctx context.Context, fileNames []string) ([]string, error) {
	reqBody, err := json.Marshal(map[string]any{"fileNames": fileNames})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check-duplicates", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duplicate check: %s", responseError(resp))
	}

	var result struct {
		Duplicates []string `json:"duplicates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode duplicates: %w", err)
	}
	return result.Duplicates, nil
}

// UploadResult is the backend's answer to an upload: either a job handle to
// poll, or a server-side declaration that the file is already indexed.
type UploadResult struct {
	TaskID  string `json:"taskId"`
	Skipped bool   `json:"skipped"`
}

// Upload submits one file as a multipart payload and returns a job handle.
// The call is capped at the configured upload timeout; exceeding it returns
// an error matching ErrTimeout.
func (c *Client) Upload(ctx context.Context, fileName string, content io.Reader, scopeName string) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("pdf", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file payload: %w", err)
	}
	if scopeName != "" {
		if err := writer.WriteField("brandName", scopeName); err != nil {
			return nil, fmt.Errorf("write brand field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	uctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(uctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (no answer after %s)", ErrTimeout, c.uploadTimeout)
		}
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload rejected: %s", responseError(resp))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	return &result, nil
}

// JobSnapshot is a point-in-time read of job status from the backend.
// Progress is optional; when absent the poller falls back to a stage-based
// percentage.
type JobSnapshot struct {
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Pages    int      `json:"pages,omitempty"`
	Chunks   int      `json:"chunks,omitempty"`
}

// Terminal reports whether the snapshot ends a polling loop.
func (s JobSnapshot) Terminal() bool {
	switch s.Status {
	case StageDone, StageError, StageNotFound:
		return true
	}
	return false
}

// JobStatus fetches the current snapshot for a job handle. An unrecognized
// handle (HTTP 404) is reported as a not_found snapshot, not an error.
func (c *Client) JobStatus(ctx context.Context, taskID string) (*JobSnapshot, error) {
	endpoint := c.baseURL + "/upload/status/" + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &JobSnapshot{Status: StageNotFound, Message: "task not found"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status: %s", responseError(resp))
	}

	var snap JobSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// responseError extracts the backend's error message from a non-success
// response, preferring a JSON {"error": ...} body over raw text.
func responseError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("%s - %s", resp.Status, strings.TrimSpace(string(body)))
}
