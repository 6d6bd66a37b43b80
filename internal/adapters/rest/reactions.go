package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// ReactionClient talks to the reaction counts store, which is independent
// of the message history store.
type ReactionClient struct {
	baseURL string
	http    *http.Client
}

var _ core.ReactionStore = (*ReactionClient)(nil)

func NewReactionClient(baseURL string) *ReactionClient {
	return &ReactionClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type reactionBody struct {
	Meeting string `json:"meeting"`
	Sender  string `json:"sender"`
	Emoji   string `json:"emoji"`
}

func (c *ReactionClient) Add(ctx context.Context, meetingID domain.MeetingID, senderID domain.ParticipantID, emoji string) error {
	b, err := json.Marshal(reactionBody{
		Meeting: string(meetingID),
		Sender:  string(senderID),
		Emoji:   emoji,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/reactions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reaction add: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reaction add: status %d", resp.StatusCode)
	}
	return nil
}

type countsResponse struct {
	Counts map[string]int64 `json:"counts"`
}

func (c *ReactionClient) Counts(ctx context.Context, meetingID domain.MeetingID) (map[string]int64, error) {
	q := url.Values{}
	q.Set("meeting", string(meetingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/reactions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reaction counts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reaction counts: status %d", resp.StatusCode)
	}

	var out countsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("reaction counts decode: %w", err)
	}
	return out.Counts, nil
}
