package db

import (
	"context"
	"fmt"
)

// InsertLog appends one telemetry entry.
func (d *DB) InsertLog(ctx context.Context, r LogRecord) error {
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO logs (level, message, user_id, conversation_id, context, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.Level, r.Message, nullStr(r.UserID), nullStr(r.ConversationID), nullStr(r.Context), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

// RecentLogs returns a user's latest log entries, newest first.
func (d *DB) RecentLogs(ctx context.Context, userID string, limit int) ([]LogRecord, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT level, message, COALESCE(user_id,''), COALESCE(conversation_id,''), COALESCE(context,''), created_at
		FROM logs WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()
	var out []LogRecord
	for rows.Next() {
		var r LogRecord
		var created string
		if err := rows.Scan(&r.Level, &r.Message, &r.UserID, &r.ConversationID, &r.Context, &created); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
