// Package rest contains the HTTP clients for the external history and
// reaction stores. Both are treated as slow and unreliable; callers decide
// what to do with failures.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

type HistoryClient struct {
	baseURL string
	http    *http.Client
}

var _ core.HistoryStore = (*HistoryClient)(nil)

func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type historyResponse struct {
	Messages   []domain.Message `json:"messages"`
	TotalCount int              `json:"total_count"`
}

func (c *HistoryClient) History(ctx context.Context, meetingID domain.MeetingID, requesterID domain.ParticipantID, isHost bool, limit, offset int) ([]domain.Message, int, error) {
	q := url.Values{}
	q.Set("meeting", string(meetingID))
	q.Set("requester", string(requesterID))
	q.Set("host", strconv.FormatBool(isHost))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/history?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("history fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("history fetch: status %d", resp.StatusCode)
	}

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("history decode: %w", err)
	}
	return out.Messages, out.TotalCount, nil
}

type sendBody struct {
	Meeting    string   `json:"meeting"`
	Sender     string   `json:"sender"`
	SenderName string   `json:"sender_name"`
	Body       string   `json:"body"`
	Visibility string   `json:"visibility"`
	Recipients []string `json:"recipients,omitempty"`
	TempID     string   `json:"temp_id"`
}

type sendResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *HistoryClient) Send(ctx context.Context, req core.SendRequest) (string, time.Time, error) {
	recipients := make([]string, len(req.Recipients))
	for i, r := range req.Recipients {
		recipients[i] = string(r)
	}
	b, err := json.Marshal(sendBody{
		Meeting:    string(req.MeetingID),
		Sender:     string(req.SenderID),
		SenderName: req.SenderName,
		Body:       req.Body,
		Visibility: string(req.Visibility),
		Recipients: recipients,
		TempID:     req.TempID,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/messages", bytes.NewReader(b))
	if err != nil {
		return "", time.Time{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("message send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("message send: status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", time.Time{}, fmt.Errorf("message send decode: %w", err)
	}
	return out.ID, out.Timestamp, nil
}
