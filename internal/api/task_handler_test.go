package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formsense/formsense-api/internal/api/shared"
	"github.com/formsense/formsense-api/internal/domain"
)

func TestGetTask_UnknownID(t *testing.T) {
	handler := NewTaskHandler(newTestScheduler(t), testLogger())

	router := chi.NewRouter()
	router.Get("/api/tasks/{taskID}", handler.GetTask)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+domain.NewTaskID(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Task not found", resp.Error)
}

func TestGetTask_EmptyID(t *testing.T) {
	handler := NewTaskHandler(newTestScheduler(t), testLogger())

	// Invoke the handler with an empty route parameter directly; the
	// router would not normally match such a path.
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("taskID", "")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.GetTask(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetTask_PollingDoesNotMutate(t *testing.T) {
	scheduler := newTestScheduler(t)
	handler := NewTaskHandler(scheduler, testLogger())

	router := chi.NewRouter()
	router.Get("/api/tasks/{taskID}", handler.GetTask)

	tpl := &domain.Template{Name: "Invoice", Fields: []domain.FieldDescriptor{{Name: "Total"}}}
	submitted := scheduler.Submit(context.Background(), []domain.BatchItem{
		{ID: "a", Name: "a.png", Image: []byte("data")},
	}, tpl)

	var first, second TaskResponse
	for _, target := range []*TaskResponse{&first, &second} {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+submitted.ID, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target))
	}

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}
