package logstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/telemetry"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSQLite_Insert(t *testing.T) {
	d := openTestDB(t)
	store := NewSQLite(d)

	err := store.Insert(context.Background(), telemetry.Entry{
		Level:     telemetry.LevelWarning,
		Message:   "tool result",
		Context:   map[string]any{"userId": "u1", "conversationId": "c1", "toolName": "get_entity"},
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	logs, err := d.RecentLogs(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Level != "WARNING" || got.ConversationID != "c1" {
		t.Errorf("unexpected record %+v", got)
	}
	if !bytes.Contains([]byte(got.Context), []byte(`"toolName":"get_entity"`)) {
		t.Errorf("context not stored: %s", got.Context)
	}
}

func TestSQLite_ThroughLogger(t *testing.T) {
	d := openTestDB(t)
	logger := telemetry.New(telemetry.Options{Enabled: true, Persist: true, Console: &bytes.Buffer{}}, NewSQLite(d))

	logger.LogToolCall(context.Background(), telemetry.Scope{UserID: "u1"}, "query_entities", "call_1", nil)
	logger.Info(context.Background(), "no user", nil)

	logs, err := d.RecentLogs(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "tool call" {
		t.Fatalf("expected the tool call entry, got %+v", logs)
	}
}
