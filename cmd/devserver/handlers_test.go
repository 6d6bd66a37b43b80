package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(setupRouter(store, "release"))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMessageLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages",
		`{"meeting":"m1","sender":"alice","sender_name":"Alice","body":"hi all","visibility":"public","temp_id":"tmp-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	hist, err := http.Get(srv.URL + "/api/history?meeting=m1&requester=bob")
	require.NoError(t, err)
	defer hist.Body.Close()
	require.Equal(t, http.StatusOK, hist.StatusCode)

	var out struct {
		Messages []struct {
			ID     string `json:"id"`
			TempID string `json:"temp_id"`
			Body   string `json:"body"`
		} `json:"messages"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&out))
	require.Len(t, out.Messages, 1)
	assert.Equal(t, created.ID, out.Messages[0].ID)
	assert.Equal(t, "tmp-1", out.Messages[0].TempID)
	assert.Equal(t, 1, out.TotalCount)
}

func TestMessageValidationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Missing body.
	resp := postJSON(t, srv.URL+"/api/messages",
		`{"meeting":"m1","sender":"alice","visibility":"public"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown visibility.
	resp = postJSON(t, srv.URL+"/api/messages",
		`{"meeting":"m1","sender":"alice","body":"x","visibility":"everyone"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Subset without recipients.
	resp = postJSON(t, srv.URL+"/api/messages",
		`{"meeting":"m1","sender":"alice","body":"x","visibility":"subset"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/history?meeting=m1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReactionEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/reactions", `{"meeting":"m1","sender":"alice","emoji":"👍"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = postJSON(t, srv.URL+"/api/reactions", `{"meeting":"m1","sender":"bob","emoji":"👍"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	counts, err := http.Get(srv.URL + "/api/reactions?meeting=m1")
	require.NoError(t, err)
	defer counts.Body.Close()

	var out struct {
		Counts map[string]int64 `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(counts.Body).Decode(&out))
	assert.Equal(t, int64(2), out.Counts["👍"])
}

func TestCursorEndpoints(t *testing.T) {
	srv := newTestServer(t)

	missing, err := http.Get(srv.URL + "/api/cursor?meeting=m1&user=u1")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/cursor",
		strings.NewReader(`{"meeting":"m1","user":"u1","message_id":"msg-5","timestamp":"2026-08-28T12:00:00Z"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := http.Get(srv.URL + "/api/cursor?meeting=m1&user=u1")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)

	var out struct {
		MessageID string `json:"message_id"`
	}
	require.NoError(t, json.NewDecoder(got.Body).Decode(&out))
	assert.Equal(t, "msg-5", out.MessageID)
}
