package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBatch_SendsMultipartForm(t *testing.T) {
	var gotTemplate string
	var gotImages map[string][]byte
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/extract", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotTemplate = r.FormValue("template")

		gotImages = make(map[string][]byte)
		for field, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			require.NoError(t, err)
			data, err := io.ReadAll(file)
			require.NoError(t, err)
			require.NoError(t, file.Close())
			gotImages[field] = data
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskSnapshot{
			ID:               "msgbatch_abc",
			Type:             "message_batch",
			ProcessingStatus: StatusInProgress,
			RequestCounts:    RequestCounts{Processing: 2},
		})
	}))
	defer server.Close()

	c := New(server.URL, WithAuthToken("tok-123"))
	snapshot, err := c.SubmitBatch(context.Background(),
		Template{Name: "Invoice", Fields: []Field{{Name: "Total"}}},
		[]Image{
			{ID: "a", Name: "a.png", Data: []byte("bytes-a")},
			{ID: "b", Name: "b.png", Data: []byte("bytes-b")},
		})
	require.NoError(t, err)

	assert.Equal(t, "msgbatch_abc", snapshot.ID)
	assert.Equal(t, StatusInProgress, snapshot.ProcessingStatus)
	assert.Equal(t, 2, snapshot.RequestCounts.Processing)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.True(t, strings.Contains(gotTemplate, `"Invoice"`))
	assert.Equal(t, []byte("bytes-a"), gotImages["image_a"])
	assert.Equal(t, []byte("bytes-b"), gotImages["image_b"])
}

func TestGetTask_DecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tasks/msgbatch_abc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskSnapshot{
			ID:               "msgbatch_abc",
			ProcessingStatus: StatusCompleted,
			RequestCounts:    RequestCounts{Succeeded: 1},
			Results: []ItemResult{
				{ImageID: "a", ImageName: "a.png", Fields: map[string]string{"Total": "41.99"}},
			},
		})
	}))
	defer server.Close()

	snapshot, err := New(server.URL).GetTask(context.Background(), "msgbatch_abc")
	require.NoError(t, err)
	assert.True(t, snapshot.IsTerminal())
	require.Len(t, snapshot.Results, 1)
	assert.Equal(t, "41.99", snapshot.Results[0].Fields["Total"])
}

func TestGetTask_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL).GetTask(context.Background(), "msgbatch_missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTask_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).GetTask(context.Background(), "msgbatch_abc")
	assert.ErrorIs(t, err, ErrRequestFailed)
}
