package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/formsense/formsense-api/internal/domain"
)

// extractionFailedSentinel is the per-field value reported when extraction
// failed for an item.
const extractionFailedSentinel = "extraction failed"

// Extractor derives a field map from one submitted image according to a
// template. Implementations live in internal/extraction.
// Version: 1.0
type Extractor interface {
	// ExtractFields returns a value for every field the template declares.
	// A returned error marks the whole item as failed.
	ExtractFields(ctx context.Context, tpl *domain.Template, item domain.BatchItem) (map[string]string, error)
}

// SchedulerConfig holds configuration for the task scheduler.
type SchedulerConfig struct {
	// ProcessingDelay is the artificial latency applied before a submitted
	// batch is completed. It stands in for real extraction latency.
	ProcessingDelay time.Duration

	// TaskTTL controls the advertised expires_at on task snapshots.
	// If zero, defaults to 24 hours. Nothing sweeps expired tasks.
	TaskTTL time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ProcessingDelay: 5 * time.Second,
		TaskTTL:         24 * time.Hour,
	}
}

// Scheduler creates tasks, mutates their state as background work completes,
// and exposes read access through the store. It owns the only two state
// transitions a task may undergo: in_progress to completed and in_progress
// to error. Both are applied exactly once; later attempts are no-ops.
type Scheduler struct {
	store     TaskStore
	extractor Extractor
	config    SchedulerConfig
	logger    *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(store TaskStore, extractor Extractor, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Scheduler")
	}
	if config.TaskTTL == 0 {
		config.TaskTTL = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:      store,
		extractor:  extractor,
		config:     config,
		logger:     logger.With(slog.String("component", "task_scheduler")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Submit allocates a new task covering the given items, stores it, and
// schedules asynchronous completion. It returns a snapshot of the freshly
// created task synchronously; the background work is fire-and-forget
// relative to the caller.
func (s *Scheduler) Submit(ctx context.Context, items []domain.BatchItem, tpl *domain.Template) *domain.Task {
	task := domain.NewTask(items, tpl, s.config.TaskTTL)
	s.store.Put(task)

	s.logger.Info("task submitted",
		"task_id", task.ID,
		"item_count", len(items),
		"template", tpl.Name)

	s.wg.Add(1)
	go s.process(task.ID)

	snapshot, _ := s.store.Get(task.ID)
	return snapshot
}

// Get returns a snapshot of the task, or false if the id is unknown.
func (s *Scheduler) Get(id string) (*domain.Task, bool) {
	return s.store.Get(id)
}

// Stop cancels pending background work and waits for in-flight completion
// goroutines to finish.
func (s *Scheduler) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

// process runs the background completion for one task. Any panic or error
// is converted into the task's terminal error state; nothing may escape
// this goroutine, and a task must never stay in_progress while the process
// lives.
func (s *Scheduler) process(id string) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during task processing",
				"task_id", id,
				"panic", r)
			s.fail(id, "internal error during extraction")
		}
	}()

	// Artificial processing latency. Shutdown skips the wait and fails the
	// task so no record is left permanently in_progress.
	select {
	case <-s.ctx.Done():
		s.fail(id, "server shutting down")
		return
	case <-time.After(s.config.ProcessingDelay):
	}

	task, ok := s.store.Get(id)
	if !ok {
		// Nothing evicts tasks today, so this indicates a logic error
		// elsewhere. Log and bail; never crash the background routine.
		s.logger.Error("task missing at completion time", "task_id", id)
		return
	}

	internal := task.Internal
	if internal == nil || internal.Template == nil {
		s.logger.Error("task has no internal payload", "task_id", id)
		s.fail(id, "internal error during extraction")
		return
	}

	results := make([]domain.ItemResult, 0, len(internal.Items))
	for _, item := range internal.Items {
		results = append(results, s.extractItem(internal.Template, item))
	}

	s.complete(id, results)
}

// extractItem runs the extractor for one item. A per-item failure yields a
// sentinel value for every template field rather than failing the batch.
func (s *Scheduler) extractItem(tpl *domain.Template, item domain.BatchItem) domain.ItemResult {
	result := domain.ItemResult{
		ImageID:   item.ID,
		ImageName: item.Name,
	}

	fields, err := s.extractor.ExtractFields(s.ctx, tpl, item)
	if err != nil {
		s.logger.Warn("extraction failed for item",
			"image_id", item.ID,
			"error", err)

		sentinel := make(map[string]string, len(tpl.Fields))
		for _, f := range tpl.Fields {
			sentinel[f.Name] = extractionFailedSentinel
		}
		result.Fields = sentinel
		result.Error = err.Error()
		return result
	}

	result.Fields = fields
	return result
}

// complete transitions the task to the completed state, shifting all
// processing counts to succeeded. The transition is idempotent: a task
// already in a terminal state is left untouched.
func (s *Scheduler) complete(id string, results []domain.ItemResult) {
	found := s.store.Update(id, func(t *domain.Task) {
		if t.IsTerminal() {
			s.logger.Warn("ignoring completion of terminal task",
				"task_id", id,
				"status", string(t.Status))
			return
		}

		now := time.Now().UTC()
		t.RequestCounts.Succeeded = t.RequestCounts.Processing
		t.RequestCounts.Processing = 0
		t.Status = domain.TaskStatusCompleted
		t.EndedAt = &now
		t.Results = results
	})
	if !found {
		s.logger.Error("task missing at completion time", "task_id", id)
		return
	}

	s.logger.Info("task completed", "task_id", id, "result_count", len(results))
}

// fail transitions the task to the terminal error state with a generic
// message. Idempotent under the same terminal-state guard as complete.
func (s *Scheduler) fail(id string, msg string) {
	found := s.store.Update(id, func(t *domain.Task) {
		if t.IsTerminal() {
			s.logger.Warn("ignoring failure of terminal task",
				"task_id", id,
				"status", string(t.Status))
			return
		}

		now := time.Now().UTC()
		t.RequestCounts.Errored = t.RequestCounts.Processing
		t.RequestCounts.Processing = 0
		t.Status = domain.TaskStatusError
		t.EndedAt = &now
		t.Error = msg
	})
	if !found {
		s.logger.Error("task missing at failure time", "task_id", id)
	}
}
