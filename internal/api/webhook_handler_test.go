package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formsense/formsense-api/internal/api/shared"
	"github.com/formsense/formsense-api/internal/billing"
	"github.com/formsense/formsense-api/internal/store"
)

// recordingSubscriptionStore keeps upserts in memory for assertions.
type recordingSubscriptionStore struct {
	subs map[uuid.UUID]*store.Subscription
}

func (s *recordingSubscriptionStore) Upsert(_ context.Context, sub *store.Subscription) error {
	s.subs[sub.AccountID] = sub
	return nil
}

func (s *recordingSubscriptionStore) GetByAccountID(_ context.Context, accountID uuid.UUID) (*store.Subscription, error) {
	sub, ok := s.subs[accountID]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func postForm(t *testing.T, handler http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paddle",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestHandlePaddleWebhook_AppliesAlert(t *testing.T) {
	accountID := uuid.New()
	subs := &recordingSubscriptionStore{subs: make(map[uuid.UUID]*store.Subscription)}
	processor := billing.NewWebhookProcessor(subs, testLogger())
	handler := NewWebhookHandler(processor, testLogger())

	form := url.Values{
		"alert_name":           {billing.AlertSubscriptionCreated},
		"subscription_id":      {"sub_42"},
		"subscription_plan_id": {"pro"},
		"passthrough":          {`{"account_id":"` + accountID.String() + `"}`},
	}
	rr := postForm(t, handler.HandlePaddleWebhook, form)

	require.Equal(t, http.StatusOK, rr.Code)

	sub, ok := subs.subs[accountID]
	require.True(t, ok)
	assert.Equal(t, store.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_42", sub.PaddleSubscriptionID)
}

func TestHandlePaddleWebhook_RejectsBadPayload(t *testing.T) {
	subs := &recordingSubscriptionStore{subs: make(map[uuid.UUID]*store.Subscription)}
	processor := billing.NewWebhookProcessor(subs, testLogger())
	handler := NewWebhookHandler(processor, testLogger())

	t.Run("missing_passthrough", func(t *testing.T) {
		form := url.Values{
			"alert_name":           {billing.AlertSubscriptionCreated},
			"subscription_id":      {"sub_42"},
			"subscription_plan_id": {"pro"},
		}
		rr := postForm(t, handler.HandlePaddleWebhook, form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing_plan", func(t *testing.T) {
		form := url.Values{
			"alert_name":      {billing.AlertSubscriptionCreated},
			"subscription_id": {"sub_42"},
			"passthrough":     {`{"account_id":"` + uuid.NewString() + `"}`},
		}
		rr := postForm(t, handler.HandlePaddleWebhook, form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		// The response names the offending field without leaking the raw
		// validator output.
		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Invalid PlanID: required field", resp.Error)
	})

	assert.Empty(t, subs.subs)
}
