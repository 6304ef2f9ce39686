package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendTurn persists messages at the end of a conversation, creating the
// conversation first if it does not exist yet. All of it happens in one
// transaction, so a turn is either fully stored or not at all.
func (d *DB) AppendTurn(ctx context.Context, userID, conversationID, title string, msgs []Message) error {
	if conversationID == "" {
		return errors.New("appending turn: conversation id is required")
	}
	return d.transaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT user_id FROM conversations WHERE id = ?", conversationID).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
				conversationID, userID, title, formatTime(now), formatTime(now),
			); err != nil {
				return fmt.Errorf("creating conversation: %w", err)
			}
		case err != nil:
			return fmt.Errorf("loading conversation: %w", err)
		case owner != userID:
			return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}

		var seq int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?", conversationID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("reading message sequence: %w", err)
		}

		for _, m := range msgs {
			seq++
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			var toolsJSON string
			if len(m.ToolsUsed) > 0 {
				b, err := json.Marshal(m.ToolsUsed)
				if err != nil {
					return fmt.Errorf("encoding tools used: %w", err)
				}
				toolsJSON = string(b)
			}
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO messages (id, conversation_id, seq, role, content, tools_used, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
				id, conversationID, seq, m.Role, m.Content, nullStr(toolsJSON), formatTime(createdAt),
			); err != nil {
				return fmt.Errorf("inserting message: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE conversations SET updated_at = ? WHERE id = ?", formatTime(now), conversationID,
		); err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
		return nil
	})
}

// GetConversation loads a conversation and its messages in order.
func (d *DB) GetConversation(ctx context.Context, userID, id string) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string
	err := d.conn.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, conversation_id, seq, role, content, COALESCE(tools_used,''), created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		var toolsJSON, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &toolsJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if toolsJSON != "" {
			if err := json.Unmarshal([]byte(toolsJSON), &m.ToolsUsed); err != nil {
				return nil, fmt.Errorf("decoding tools used for message %s: %w", m.ID, err)
			}
		}
		m.CreatedAt = parseTime(created)
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

// ListConversations returns the user's most recently updated conversations,
// without messages.
func (d *DB) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()
	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
