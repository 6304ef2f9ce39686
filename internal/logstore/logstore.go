// Package logstore holds the durable sinks for telemetry entries.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/telemetry"
)

// SQLite writes entries to the application database's logs table.
type SQLite struct {
	db *db.DB
}

func NewSQLite(d *db.DB) *SQLite {
	return &SQLite{db: d}
}

func (s *SQLite) Insert(ctx context.Context, e telemetry.Entry) error {
	rec, err := record(e)
	if err != nil {
		return err
	}
	return s.db.InsertLog(ctx, rec)
}

func record(e telemetry.Entry) (db.LogRecord, error) {
	var contextJSON string
	if len(e.Context) > 0 {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return db.LogRecord{}, fmt.Errorf("encoding log context: %w", err)
		}
		contextJSON = string(b)
	}
	return db.LogRecord{
		Level:          e.Level.String(),
		Message:        e.Message,
		UserID:         e.UserID(),
		ConversationID: e.ConversationID(),
		Context:        contextJSON,
		CreatedAt:      e.Timestamp,
	}, nil
}
