// Package client is a Go consumer for the FormSense extraction API. It
// submits image batches and polls task status until the server reports a
// terminal outcome.
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
	"time"
)

// ErrTaskNotFound indicates the server does not know the polled task id.
// For an id the caller obtained from a submission this means the server
// was recycled, so the status will never become available.
var ErrTaskNotFound = errors.New("task not found")

// ErrRequestFailed wraps non-2xx responses other than 404.
var ErrRequestFailed = errors.New("request failed")

// Task status values reported by the server.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// RequestCounts mirrors the per-item progress counters of a task snapshot.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Canceled   int `json:"canceled"`
	Errored    int `json:"errored"`
	Expired    int `json:"expired"`
}

// ItemResult is the extraction outcome for one submitted image.
type ItemResult struct {
	ImageID   string            `json:"imageId"`
	ImageName string            `json:"imageName"`
	Fields    map[string]string `json:"fields"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// TaskSnapshot is one observation of a task's state.
type TaskSnapshot struct {
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	ProcessingStatus string        `json:"processing_status"`
	RequestCounts    RequestCounts `json:"request_counts"`
	EndedAt          *time.Time    `json:"ended_at"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	Results          []ItemResult  `json:"results,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// IsTerminal reports whether the snapshot is in a terminal state.
func (s *TaskSnapshot) IsTerminal() bool {
	return s.ProcessingStatus == StatusCompleted || s.ProcessingStatus == StatusError
}

// Field describes one value to extract from each image.
type Field struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Template names the extraction template and its fields.
type Template struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Image is one batch item to submit. ID is the caller-chosen item id that
// comes back as imageId in the results.
type Image struct {
	ID   string
	Name string
	Data []byte
}

// TaskClient talks to a FormSense server over HTTP.
type TaskClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// Option configures a TaskClient.
type Option func(*TaskClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *TaskClient) {
		c.httpClient = httpClient
	}
}

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(c *TaskClient) {
		c.authToken = token
	}
}

// New creates a TaskClient for the given base URL, e.g.
// "https://api.formsense.example".
func New(baseURL string, opts ...Option) *TaskClient {
	c := &TaskClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitBatch uploads the template and images and returns the initial task
// snapshot, which is always in_progress.
func (c *TaskClient) SubmitBatch(ctx context.Context, tpl Template, images []Image) (*TaskSnapshot, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	tplJSON, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	if err := writer.WriteField("template", string(tplJSON)); err != nil {
		return nil, fmt.Errorf("failed to write template part: %w", err)
	}

	for _, img := range images {
		part, err := writer.CreateFormFile("image_"+img.ID, img.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create image part %q: %w", img.ID, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, fmt.Errorf("failed to write image part %q: %w", img.ID, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/extract", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// GetTask fetches the current snapshot for a task id. A 404 response is
// reported as ErrTaskNotFound.
func (c *TaskClient) GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req)
}

func (c *TaskClient) do(req *http.Request) (*TaskSnapshot, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTaskNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s returned %d: %s",
			ErrRequestFailed, req.URL.Path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var snapshot TaskSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode task snapshot: %w", err)
	}
	return &snapshot, nil
}
