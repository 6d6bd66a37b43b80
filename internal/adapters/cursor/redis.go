package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// RedisStore keeps cursors in redis so they are shared across devices.
type RedisStore struct {
	client *redis.Client
}

var _ core.CursorStore = (*RedisStore)(nil)

func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("redis: url is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStore{client: c}, nil
}

func redisKey(meetingID domain.MeetingID, userID domain.ParticipantID) string {
	return fmt.Sprintf("huddle:cursor:%s:%s", meetingID, userID)
}

func (s *RedisStore) Get(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID) (domain.SyncCursor, error) {
	res, err := s.client.Get(ctx, redisKey(meetingID, userID)).Result()
	if err == redis.Nil {
		return domain.SyncCursor{}, core.ErrCursorMiss
	}
	if err != nil {
		return domain.SyncCursor{}, err
	}
	var cur domain.SyncCursor
	if err := json.Unmarshal([]byte(res), &cur); err != nil {
		return domain.SyncCursor{}, err
	}
	return cur, nil
}

func (s *RedisStore) Set(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID, cursor domain.SyncCursor) error {
	v, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(meetingID, userID), v, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
