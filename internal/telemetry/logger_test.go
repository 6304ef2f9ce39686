package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func consoleLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("console line is not JSON: %q", line)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarning},
		{"Warning", LevelWarning},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLog_DisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{}
	l := New(Options{Enabled: false, Persist: true, Console: &buf}, store)

	l.Error(context.Background(), "boom", Fields{"userId": "u1"})

	if buf.Len() != 0 || len(store.entries) != 0 {
		t.Fatal("expected no output when logging is disabled")
	}
}

func TestLog_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Enabled: true, Level: LevelWarning, Console: &buf}, nil)

	l.Info(context.Background(), "quiet", nil)
	l.Warn(context.Background(), "loud", nil)

	lines := consoleLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "loud" {
		t.Fatalf("expected only the warning, got %v", lines)
	}
	if lines[0]["level"] != "warn" {
		t.Errorf("expected zerolog level warn, got %v", lines[0]["level"])
	}
}

func TestLog_PersistsOnlyWithUserID(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{}
	l := New(Options{Enabled: true, Persist: true, Console: &buf}, store)

	l.Info(context.Background(), "anonymous", nil)
	l.Info(context.Background(), "scoped", Fields{"userId": "u1", "conversationId": "c1"})

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.Message != "scoped" || e.UserID() != "u1" || e.ConversationID() != "c1" {
		t.Errorf("unexpected entry %+v", e)
	}
	if len(consoleLines(t, &buf)) != 2 {
		t.Error("expected both entries on the console")
	}
}

func TestLog_PersistFlagOff(t *testing.T) {
	store := &memStore{}
	l := New(Options{Enabled: true, Persist: false, Console: &bytes.Buffer{}}, store)

	l.Info(context.Background(), "scoped", Fields{"userId": "u1"})

	if len(store.entries) != 0 {
		t.Fatal("expected nothing persisted with persist off")
	}
}

func TestLog_StoreFailureReportedLower(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{err: errors.New("disk full")}
	l := New(Options{Enabled: true, Persist: true, Level: LevelDebug, Console: &buf}, store)

	l.Error(context.Background(), "tool exploded", Fields{"userId": "u1"})

	lines := consoleLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected original entry plus failure report, got %d lines", len(lines))
	}
	if lines[1]["level"] != "warn" {
		t.Errorf("expected failure reported at warn, got %v", lines[1]["level"])
	}
	if lines[1]["error"] != "disk full" {
		t.Errorf("expected store error in report, got %v", lines[1]["error"])
	}
}

func TestLog_CyclicContext(t *testing.T) {
	type node struct {
		Name string
		Next *node
	}
	n := &node{Name: "a"}
	n.Next = n

	var buf bytes.Buffer
	l := New(Options{Enabled: true, Console: &buf}, nil)
	l.Info(context.Background(), "cycle", Fields{"node": n})

	if !strings.Contains(buf.String(), "[circular]") {
		t.Fatalf("expected circular marker, got %s", buf.String())
	}
}

func TestVerbosePayloads(t *testing.T) {
	scope := Scope{UserID: "u1", ConversationID: "c1"}

	var quiet bytes.Buffer
	New(Options{Enabled: true, Console: &quiet}, nil).
		LogToolCall(context.Background(), scope, "query_entities", "call_1", map[string]any{"entityType": "task"})
	if strings.Contains(quiet.String(), "entityType") {
		t.Error("expected tool input hidden without verbose")
	}

	var loud bytes.Buffer
	New(Options{Enabled: true, Verbose: true, Console: &loud}, nil).
		LogToolCall(context.Background(), scope, "query_entities", "call_1", map[string]any{"entityType": "task"})
	if !strings.Contains(loud.String(), "entityType") {
		t.Error("expected tool input logged in verbose mode")
	}
}

func TestLogToolResult_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Enabled: true, Console: &buf}, nil)
	l.LogToolResult(context.Background(), Scope{UserID: "u1"}, "delete_entity", "c1", false, 3, nil)

	lines := consoleLines(t, &buf)
	if len(lines) != 1 || lines[0]["level"] != "warn" {
		t.Fatalf("expected one warn line, got %v", lines)
	}
	if lines[0]["executionTimeMs"] != float64(3) {
		t.Errorf("expected executionTimeMs 3, got %v", lines[0]["executionTimeMs"])
	}
}
