package api

import (
	"time"

	"github.com/formsense/formsense-api/internal/domain"
)

// Common request/response structures

// TaskResponse is the public snapshot of an extraction task. The shape is
// stable across the task's whole lifetime: consumers always see the same
// keys, with results/error populated only once the task is terminal.
type TaskResponse struct {
	ID               string               `json:"id"`
	Type             string               `json:"type"`
	ProcessingStatus string               `json:"processing_status"`
	RequestCounts    domain.RequestCounts `json:"request_counts"`
	EndedAt          *time.Time           `json:"ended_at"`
	CreatedAt        time.Time            `json:"created_at"`
	ExpiresAt        time.Time            `json:"expires_at"`

	// CancelInitiatedAt and ResultsURL are carried for wire compatibility
	// with batch-style consumers; cancellation and hosted result files are
	// not implemented, so both are always null.
	CancelInitiatedAt *time.Time `json:"cancel_initiated_at"`
	ResultsURL        *string    `json:"results_url"`

	Results []domain.ItemResult `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// taskToResponse converts a domain task into its public snapshot. The
// internal payload (raw images, parsed template) never crosses this
// boundary.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Type:             t.Type,
		ProcessingStatus: string(t.Status),
		RequestCounts:    t.RequestCounts,
		EndedAt:          t.EndedAt,
		CreatedAt:        t.CreatedAt,
		ExpiresAt:        t.ExpiresAt,
		Results:          t.Results,
		Error:            t.Error,
	}
}
