package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func createTestUser(t *testing.T, d *DB, name string) *User {
	t.Helper()
	u, err := d.CreateUser(context.Background(), name, "en", "UTC")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustCreate(t *testing.T, d *DB, userID string, kind Kind, fields map[string]any) int64 {
	t.Helper()
	id, err := d.CreateEntity(context.Background(), userID, kind, fields)
	if err != nil {
		t.Fatalf("CreateEntity(%s): %v", kind, err)
	}
	return id
}

// --- Entities ---

func TestCreateAndGetTask(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	id := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "Buy milk", "priority": "high", "due_date": "2026-03-01"})

	task, err := d.GetEntity(ctx, u.ID, KindTask, id, false)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if task.Title != "Buy milk" {
		t.Errorf("expected title %q, got %q", "Buy milk", task.Title)
	}
	if task.Fields["priority"] != "high" {
		t.Errorf("expected priority high, got %v", task.Fields["priority"])
	}
	if task.Fields["status"] != "open" {
		t.Errorf("expected default status open, got %v", task.Fields["status"])
	}
	if task.UserID != u.ID {
		t.Errorf("expected owner %s, got %s", u.ID, task.UserID)
	}
}

func TestCreateEntity_RequiresTitle(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "ana")

	if _, err := d.CreateEntity(context.Background(), u.ID, KindNote, map[string]any{"content": "x"}); err == nil {
		t.Fatal("expected error when title is missing")
	}
}

func TestCreateEntity_DisallowedColumn(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "ana")

	_, err := d.CreateEntity(context.Background(), u.ID, KindTask, map[string]any{"title": "x", "user_id": "someone-else"})
	if err == nil {
		t.Fatal("expected error for user_id column")
	}
}

func TestGetEntity_OtherUserIsNotFound(t *testing.T) {
	d := openTestDB(t)
	ana := createTestUser(t, d, "ana")
	ben := createTestUser(t, d, "ben")

	id := mustCreate(t, d, ana.ID, KindTask, map[string]any{"title": "private"})

	_, err := d.GetEntity(context.Background(), ben.ID, KindTask, id, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEntities_ExcludesArchivedAndDeleted(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "live"})
	archived := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "archived", "archived": true})
	deleted := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "deleted"})
	if err := d.DeleteEntity(ctx, u.ID, KindTask, deleted); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	tasks, err := d.ListEntities(ctx, u.ID, KindTask, Filter{})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "live" {
		t.Fatalf("expected only the live task, got %+v", tasks)
	}

	all, err := d.ListEntities(ctx, u.ID, KindTask, Filter{IncludeArchived: true, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListEntities(all): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	for _, e := range all {
		if e.ID == archived && !e.Archived {
			t.Error("expected archived flag on archived task")
		}
		if e.ID == deleted && !e.Deleted {
			t.Error("expected deleted flag on deleted task")
		}
	}
}

func TestListEntities_ScopedToUser(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	ana := createTestUser(t, d, "ana")
	ben := createTestUser(t, d, "ben")

	mustCreate(t, d, ana.ID, KindNote, map[string]any{"title": "ana's note"})
	mustCreate(t, d, ben.ID, KindNote, map[string]any{"title": "ben's note"})

	notes, err := d.ListEntities(ctx, ana.ID, KindNote, Filter{})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "ana's note" {
		t.Fatalf("expected only ana's note, got %+v", notes)
	}
}

func TestListEntities_PriorityOrderAndLimit(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "low", "priority": "low"})
	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "urgent", "priority": "urgent"})
	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "normal"})

	tasks, err := d.ListEntities(ctx, u.ID, KindTask, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "urgent" {
		t.Errorf("expected urgent first, got %q", tasks[0].Title)
	}
}

func TestListEntities_FilterByPriority(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "a", "priority": "urgent"})
	mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "b", "priority": "low"})

	tasks, err := d.ListEntities(ctx, u.ID, KindTask, Filter{Priority: "urgent"})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "a" {
		t.Fatalf("expected one urgent task, got %+v", tasks)
	}
}

func TestListEntities_FilterNotSupported(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "ana")

	if _, err := d.ListEntities(context.Background(), u.ID, KindNote, Filter{Priority: "high"}); err == nil {
		t.Fatal("expected error filtering notes by priority")
	}
}

func TestListEntities_SearchEscapesWildcards(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	mustCreate(t, d, u.ID, KindNote, map[string]any{"title": "100% done"})
	mustCreate(t, d, u.ID, KindNote, map[string]any{"title": "1000 things"})

	notes, err := d.ListEntities(ctx, u.ID, KindNote, Filter{Query: "100%"})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "100% done" {
		t.Fatalf("expected only the literal match, got %+v", notes)
	}
}

func TestUpdateEntity_OnlyTouchesGivenFields(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	id := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "old", "notes": "keep me", "priority": "high"})

	if err := d.UpdateEntity(ctx, u.ID, KindTask, id, map[string]any{"title": "new"}); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	task, _ := d.GetEntity(ctx, u.ID, KindTask, id, false)
	if task.Title != "new" {
		t.Errorf("expected title %q, got %q", "new", task.Title)
	}
	if task.Fields["notes"] != "keep me" {
		t.Errorf("expected notes untouched, got %v", task.Fields["notes"])
	}
	if task.Fields["priority"] != "high" {
		t.Errorf("expected priority untouched, got %v", task.Fields["priority"])
	}
}

func TestUpdateEntity_OtherUser(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	ana := createTestUser(t, d, "ana")
	ben := createTestUser(t, d, "ben")

	id := mustCreate(t, d, ana.ID, KindTask, map[string]any{"title": "mine"})

	err := d.UpdateEntity(ctx, ben.ID, KindTask, id, map[string]any{"title": "stolen"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	task, _ := d.GetEntity(ctx, ana.ID, KindTask, id, false)
	if task.Title != "mine" {
		t.Errorf("title changed to %q", task.Title)
	}
}

func TestUpdateEntity_NoFields(t *testing.T) {
	d := openTestDB(t)
	u := createTestUser(t, d, "ana")
	id := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "x"})

	if err := d.UpdateEntity(context.Background(), u.ID, KindTask, id, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestDeleteEntity_Twice(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")
	id := mustCreate(t, d, u.ID, KindProject, map[string]any{"name": "Alpha"})

	if err := d.DeleteEntity(ctx, u.ID, KindProject, id); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if err := d.DeleteEntity(ctx, u.ID, KindProject, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	got, err := d.GetEntity(ctx, u.ID, KindProject, id, true)
	if err != nil {
		t.Fatalf("GetEntity(includeDeleted): %v", err)
	}
	if !got.Deleted {
		t.Error("expected deleted flag")
	}
}

func TestCompleteTask(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")
	id := mustCreate(t, d, u.ID, KindTask, map[string]any{"title": "x"})

	if err := d.CompleteTask(ctx, u.ID, id, time.Now()); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	task, _ := d.GetEntity(ctx, u.ID, KindTask, id, false)
	if task.Fields["status"] != "done" {
		t.Errorf("expected done, got %v", task.Fields["status"])
	}
	if task.Fields["completed_at"] == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestUnknownKind(t *testing.T) {
	d := openTestDB(t)
	if _, err := d.ListEntities(context.Background(), "u", Kind("widget"), Filter{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// --- Users ---

func TestUserLookups(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	byToken, err := d.UserByToken(ctx, u.APIToken)
	if err != nil {
		t.Fatalf("UserByToken: %v", err)
	}
	if byToken.ID != u.ID {
		t.Errorf("expected %s, got %s", u.ID, byToken.ID)
	}

	if _, err := d.UserByToken(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := d.UserByToken(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty token, got %v", err)
	}

	if err := d.LinkDiscord(ctx, u.ID, "disc-1"); err != nil {
		t.Fatalf("LinkDiscord: %v", err)
	}
	byDiscord, err := d.UserByDiscordID(ctx, "disc-1")
	if err != nil {
		t.Fatalf("UserByDiscordID: %v", err)
	}
	if byDiscord.DisplayName != "ana" {
		t.Errorf("expected ana, got %q", byDiscord.DisplayName)
	}
}

// --- Conversations ---

func TestAppendTurn_CreatesAndOrders(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	err := d.AppendTurn(ctx, u.ID, "conv-1", "groceries", []Message{
		{Role: "user", Content: "add milk"},
		{Role: "assistant", Content: "done", ToolsUsed: []ToolUse{{Type: "tool_call", ToolCallID: "c1", Content: "create_entity"}}},
	})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	err = d.AppendTurn(ctx, u.ID, "conv-1", "ignored", []Message{
		{Role: "user", Content: "and eggs"},
		{Role: "assistant", Content: "added"},
	})
	if err != nil {
		t.Fatalf("AppendTurn(second): %v", err)
	}

	conv, err := d.GetConversation(ctx, u.ID, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Title != "groceries" {
		t.Errorf("expected title from first turn, got %q", conv.Title)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(conv.Messages))
	}
	for i, m := range conv.Messages {
		if m.Seq != int64(i+1) {
			t.Errorf("message %d has seq %d", i, m.Seq)
		}
	}
	if conv.Messages[2].Content != "and eggs" {
		t.Errorf("unexpected order: %q", conv.Messages[2].Content)
	}
	if len(conv.Messages[1].ToolsUsed) != 1 || conv.Messages[1].ToolsUsed[0].ToolCallID != "c1" {
		t.Errorf("tools used not round-tripped: %+v", conv.Messages[1].ToolsUsed)
	}
}

func TestAppendTurn_OtherUsersConversation(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	ana := createTestUser(t, d, "ana")
	ben := createTestUser(t, d, "ben")

	if err := d.AppendTurn(ctx, ana.ID, "conv-1", "", []Message{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	err := d.AppendTurn(ctx, ben.ID, "conv-1", "", []Message{{Role: "user", Content: "hijack"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	conv, _ := d.GetConversation(ctx, ana.ID, "conv-1")
	if len(conv.Messages) != 1 {
		t.Errorf("expected 1 message after rejected append, got %d", len(conv.Messages))
	}
	if _, err := d.GetConversation(ctx, ben.ID, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestGetConversation_CorruptToolTrace(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	err := d.AppendTurn(ctx, u.ID, "conv-1", "", []Message{
		{Role: "user", Content: "add milk"},
		{Role: "assistant", Content: "done", ToolsUsed: []ToolUse{{Type: "tool_call", ToolCallID: "c1", Content: "create_entity"}}},
	})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if _, err := d.conn.ExecContext(ctx, "UPDATE messages SET tools_used = '[{' WHERE conversation_id = 'conv-1' AND role = 'assistant'"); err != nil {
		t.Fatalf("corrupting trace: %v", err)
	}

	if _, err := d.GetConversation(ctx, u.ID, "conv-1"); err == nil {
		t.Fatal("expected an error for an unreadable tool trace")
	}
}

func TestListConversations_Bounded(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, d, "ana")

	for _, id := range []string{"a", "b", "c"} {
		if err := d.AppendTurn(ctx, u.ID, id, id, []Message{{Role: "user", Content: id}}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	convs, err := d.ListConversations(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if len(convs[0].Messages) != 0 {
		t.Error("listing should not load messages")
	}
}

// --- Logs ---

func TestInsertAndListLogs(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		err := d.InsertLog(ctx, LogRecord{Level: "INFO", Message: msg, UserID: "u1", Context: `{"k":1}`, CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("InsertLog: %v", err)
		}
	}
	logs, err := d.RecentLogs(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 2 || logs[0].Message != "second" {
		t.Fatalf("expected newest first, got %+v", logs)
	}
}
