package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formsense/formsense-api/internal/api"
	"github.com/formsense/formsense-api/internal/billing"
	"github.com/formsense/formsense-api/internal/config"
	"github.com/formsense/formsense-api/internal/extraction"
	"github.com/formsense/formsense-api/internal/service/auth"
	"github.com/formsense/formsense-api/internal/service/usage"
	"github.com/formsense/formsense-api/internal/store"
	"github.com/formsense/formsense-api/internal/task"
)

// memUsageStore is an in-memory UsageStore for router tests.
type memUsageStore struct {
	pages map[string]int
}

func (s *memUsageStore) GetPagesUsed(_ context.Context, accountID uuid.UUID, period string) (int, error) {
	return s.pages[accountID.String()+period], nil
}

func (s *memUsageStore) AddPages(_ context.Context, accountID uuid.UUID, period string, pages int) error {
	s.pages[accountID.String()+period] += pages
	return nil
}

// memSubscriptionStore is an in-memory SubscriptionStore for router tests.
type memSubscriptionStore struct {
	subs map[uuid.UUID]*store.Subscription
}

func (s *memSubscriptionStore) Upsert(_ context.Context, sub *store.Subscription) error {
	s.subs[sub.AccountID] = sub
	return nil
}

func (s *memSubscriptionStore) GetByAccountID(_ context.Context, accountID uuid.UUID) (*store.Subscription, error) {
	sub, ok := s.subs[accountID]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

// newTestApplication wires an application with in-memory stores and the
// stub extractor, skipping the database entirely.
func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error"},
		Auth: config.AuthConfig{
			JWTSecret:            "router-test-secret-0123456789abcdef",
			TokenLifetimeMinutes: 60,
		},
		Task: config.TaskConfig{
			ProcessingDelay: 10 * time.Millisecond,
			TaskTTL:         24 * time.Hour,
		},
		Extraction: config.ExtractionConfig{Provider: "stub"},
	}

	appLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwtService, err := auth.NewJWTService(cfg.Auth)
	require.NoError(t, err)

	subs := &memSubscriptionStore{subs: make(map[uuid.UUID]*store.Subscription)}
	usageStore := &memUsageStore{pages: make(map[string]int)}

	scheduler := task.NewScheduler(
		task.NewMemoryTaskStore(),
		extraction.NewStubExtractor(),
		task.SchedulerConfig{ProcessingDelay: cfg.Task.ProcessingDelay, TaskTTL: cfg.Task.TaskTTL},
		appLogger,
	)
	t.Cleanup(scheduler.Stop)

	return &application{
		config:           cfg,
		logger:           appLogger,
		scheduler:        scheduler,
		jwtService:       jwtService,
		limiter:          usage.NewLimiter(usageStore, subs, appLogger),
		webhookProcessor: billing.NewWebhookProcessor(subs, appLogger),
	}
}

func bearerToken(t *testing.T, app *application) string {
	t.Helper()
	token, err := app.jwtService.GenerateToken(context.Background(), uuid.New())
	require.NoError(t, err)
	return token
}

func submissionBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("template",
		`{"name":"Invoice","fields":[{"name":"Total"}]}`))
	part, err := writer.CreateFormFile("image_item1", "invoice.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	router := newTestApplication(t).setupRouter()

	body, contentType := submissionBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks/msgbatch_x", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_HealthCheckIsPublic(t *testing.T) {
	router := newTestApplication(t).setupRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestRouter_SubmitAndPollEndToEnd(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()
	token := bearerToken(t, app)

	body, contentType := submissionBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var submitted api.TaskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitted))
	assert.Equal(t, "in_progress", submitted.ProcessingStatus)
	assert.Equal(t, 1, submitted.RequestCounts.Processing)

	deadline := time.After(2 * time.Second)
	for {
		pollReq := httptest.NewRequest(http.MethodGet, "/api/tasks/"+submitted.ID, nil)
		pollReq.Header.Set("Authorization", "Bearer "+token)
		pollRR := httptest.NewRecorder()
		router.ServeHTTP(pollRR, pollReq)
		require.Equal(t, http.StatusOK, pollRR.Code)

		var snapshot api.TaskResponse
		require.NoError(t, json.Unmarshal(pollRR.Body.Bytes(), &snapshot))

		if snapshot.ProcessingStatus == "completed" {
			require.Len(t, snapshot.Results, 1)
			assert.NotEmpty(t, snapshot.Results[0].Fields["Total"])
			assert.Equal(t, 1, snapshot.RequestCounts.Succeeded)
			return
		}

		select {
		case <-deadline:
			t.Fatal("task did not complete in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRouter_WebhookIsPublic(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()

	form := url.Values{
		"alert_name":           {"subscription_created"},
		"subscription_id":      {"sub_1"},
		"subscription_plan_id": {"pro"},
		"passthrough":          {`{"account_id":"` + uuid.NewString() + `"}`},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paddle",
		bytes.NewBufferString(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
