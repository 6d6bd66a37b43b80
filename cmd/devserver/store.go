package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/avoskov/huddle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	meeting    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	body       TEXT NOT NULL,
	visibility TEXT NOT NULL,
	recipients TEXT NOT NULL DEFAULT '',
	temp_id    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_meeting ON messages(meeting, created_at);

CREATE TABLE IF NOT EXISTS reactions (
	meeting TEXT NOT NULL,
	emoji   TEXT NOT NULL,
	count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (meeting, emoji)
);

CREATE TABLE IF NOT EXISTS cursors (
	meeting    TEXT NOT NULL,
	user       TEXT NOT NULL,
	message_id TEXT NOT NULL,
	ts         TIMESTAMP NOT NULL,
	PRIMARY KEY (meeting, user)
);
`

// Store is the sqlite backing for the fixture server.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// visibilityPredicate filters messages the way the real service would:
// private messages are only ever returned to their sender or eligible
// recipients, so the client never has to filter.
const visibilityPredicate = `meeting = ?
	AND (
		visibility = 'public'
		OR sender = ?
		OR (visibility = 'host' AND ?)
		OR (visibility = 'subset' AND ',' || recipients || ',' LIKE '%,' || ? || ',%')
	)`

func (s *Store) History(ctx context.Context, meeting, requester string, isHost bool, limit, offset int) ([]domain.Message, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE "+visibilityPredicate,
		meeting, requester, isHost, requester,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sender, sender_name, body, visibility, recipients, temp_id, created_at FROM messages WHERE "+
			visibilityPredicate+" ORDER BY created_at, id LIMIT ? OFFSET ?",
		meeting, requester, isHost, requester, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var recipients string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Body, &m.Visibility, &recipients, &m.TempID, &m.SentAt); err != nil {
			return nil, 0, err
		}
		if recipients != "" {
			for _, r := range strings.Split(recipients, ",") {
				m.Recipients = append(m.Recipients, domain.ParticipantID(r))
			}
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *Store) SaveMessage(ctx context.Context, meeting, sender, senderName, body, visibility, tempID string, recipients []string) (string, time.Time, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, meeting, sender, sender_name, body, visibility, recipients, temp_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, meeting, sender, senderName, body, visibility, strings.Join(recipients, ","), tempID, createdAt,
	)
	if err != nil {
		return "", time.Time{}, err
	}
	return id, createdAt, nil
}

func (s *Store) AddReaction(ctx context.Context, meeting, emoji string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reactions (meeting, emoji, count) VALUES (?, ?, 1) ON CONFLICT(meeting, emoji) DO UPDATE SET count = count + 1",
		meeting, emoji,
	)
	return err
}

func (s *Store) ReactionCounts(ctx context.Context, meeting string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT emoji, count FROM reactions WHERE meeting = ?", meeting)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var emoji string
		var count int64
		if err := rows.Scan(&emoji, &count); err != nil {
			return nil, err
		}
		counts[emoji] = count
	}
	return counts, rows.Err()
}

func (s *Store) GetCursor(ctx context.Context, meeting, user string) (string, time.Time, bool, error) {
	var messageID string
	var ts time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT message_id, ts FROM cursors WHERE meeting = ? AND user = ?",
		meeting, user,
	).Scan(&messageID, &ts)
	if err == sql.ErrNoRows {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return messageID, ts, true, nil
}

func (s *Store) SetCursor(ctx context.Context, meeting, user, messageID string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cursors (meeting, user, message_id, ts) VALUES (?, ?, ?, ?) ON CONFLICT(meeting, user) DO UPDATE SET message_id = excluded.message_id, ts = excluded.ts",
		meeting, user, messageID, ts,
	)
	return err
}
