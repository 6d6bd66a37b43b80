package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

func TestHistoryClientFetch(t *testing.T) {
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/history", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "m1", q.Get("meeting"))
		assert.Equal(t, "u1", q.Get("requester"))
		assert.Equal(t, "true", q.Get("host"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))

		json.NewEncoder(w).Encode(map[string]any{
			"messages": []domain.Message{
				{ID: "a", SenderID: "u2", Body: "hi", SentAt: at},
			},
			"total_count": 7,
		})
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL)
	msgs, total, err := c.History(context.Background(), "m1", "u1", true, 50, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].ID)
	assert.True(t, at.Equal(msgs[0].SentAt))
}

func TestHistoryClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL)
	_, _, err := c.History(context.Background(), "m1", "u1", false, 100, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHistoryClientSend(t *testing.T) {
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m1", body["meeting"])
		assert.Equal(t, "u1", body["sender"])
		assert.Equal(t, "psst", body["body"])
		assert.Equal(t, "subset", body["visibility"])
		assert.Equal(t, []any{"u2"}, body["recipients"])
		assert.Equal(t, "tmp-1", body["temp_id"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "srv-9", "timestamp": at})
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL)
	id, sentAt, err := c.Send(context.Background(), core.SendRequest{
		MeetingID:  "m1",
		SenderID:   "u1",
		SenderName: "User One",
		Body:       "psst",
		Visibility: domain.VisibilitySubset,
		Recipients: []domain.ParticipantID{"u2"},
		TempID:     "tmp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-9", id)
	assert.True(t, at.Equal(sentAt))
}

func TestReactionClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/reactions", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "👍", body["emoji"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case http.MethodGet:
			assert.Equal(t, "m1", r.URL.Query().Get("meeting"))
			json.NewEncoder(w).Encode(map[string]any{"counts": map[string]int64{"👍": 3}})
		}
	}))
	defer srv.Close()

	c := NewReactionClient(srv.URL)
	require.NoError(t, c.Add(context.Background(), "m1", "u1", "👍"))

	counts, err := c.Counts(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["👍"])
}
