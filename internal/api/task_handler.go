package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formsense/formsense-api/internal/api/shared"
	"github.com/formsense/formsense-api/internal/platform/logger"
	"github.com/formsense/formsense-api/internal/task"
)

// TaskHandler handles task status polling requests.
type TaskHandler struct {
	scheduler *task.Scheduler
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(scheduler *task.Scheduler, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// GetTask handles GET /api/tasks/{taskID} requests. It is a pure read of
// the current snapshot: polling never mutates task state.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return
	}

	snapshot, ok := h.scheduler.Get(taskID)
	if !ok {
		log.Debug("task not found", slog.String("task_id", taskID))
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(snapshot))
}
