package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AppendMessage adds one turn to a chat's history. Empty content is
// ignored. History is append-only.
func (s *Store) AppendMessage(ctx context.Context, chatID int64, role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, chatID, role, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit most recent messages for a chat in
// chronological order. An empty history is an empty slice, not an error.
func (s *Store) RecentMessages(ctx context.Context, chatID int64, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, role, content, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY id DESC LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ChatID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Rows come newest-first; reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClearMessages deletes a chat's history.
// Returns the number of messages removed.
func (s *Store) ClearMessages(ctx context.Context, chatID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID)
	if err != nil {
		return 0, fmt.Errorf("clearing messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}
