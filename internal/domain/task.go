package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of an extraction task.
type TaskStatus string

// Possible task status values. A task starts in_progress and reaches exactly
// one of the two terminal states; there are no transitions out of a terminal
// state.
const (
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// TaskTypeMessageBatch is the discriminator value carried by every task
// snapshot. Only batch extraction tasks exist in this system.
const TaskTypeMessageBatch = "message_batch"

// RequestCounts tracks the per-item progress of a batch. The sum of all five
// buckets equals the number of items submitted at creation and stays constant
// while individual counters shift from Processing toward the terminal buckets.
// Canceled and Expired are reserved for a future TTL sweep and stay zero.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Canceled   int `json:"canceled"`
	Errored    int `json:"errored"`
	Expired    int `json:"expired"`
}

// Total returns the sum of all counter buckets.
func (c RequestCounts) Total() int {
	return c.Processing + c.Succeeded + c.Canceled + c.Errored + c.Expired
}

// BatchItem is one submitted image awaiting extraction. Items are carried in
// the task's internal payload and are never exposed through the status API.
type BatchItem struct {
	ID    string
	Name  string
	Image []byte
}

// ItemResult is the extraction outcome for a single batch item.
type ItemResult struct {
	ImageID   string            `json:"imageId"`
	ImageName string            `json:"imageName"`
	Fields    map[string]string `json:"fields"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// TaskInternal is the private payload retained only for background
// processing. It must be stripped from every status response.
type TaskInternal struct {
	Items    []BatchItem
	Template *Template
}

// Task represents one batch extraction job from submission to terminal
// outcome. Fields other than Status, RequestCounts, EndedAt, Results and
// Error are immutable after creation.
type Task struct {
	ID            string
	Type          string
	Status        TaskStatus
	RequestCounts RequestCounts
	CreatedAt     time.Time
	EndedAt       *time.Time
	ExpiresAt     time.Time
	Results       []ItemResult
	Error         string
	Internal      *TaskInternal
}

// NewTask creates a Task for the given items and template with all items
// counted under Processing. The ttl controls the advertised ExpiresAt.
func NewTask(items []BatchItem, tpl *Template, ttl time.Duration) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:     NewTaskID(),
		Type:   TaskTypeMessageBatch,
		Status: TaskStatusInProgress,
		RequestCounts: RequestCounts{
			Processing: len(items),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Internal: &TaskInternal{
			Items:    items,
			Template: tpl,
		},
	}
}

// IsTerminal reports whether the task has reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusError
}

// NewTaskID generates an opaque unique task identifier.
func NewTaskID() string {
	return "msgbatch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
