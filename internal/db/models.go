package db

import "time"

// Kind names a user-owned entity type.
type Kind string

const (
	KindTask       Kind = "task"
	KindEvent      Kind = "event"
	KindNote       Kind = "note"
	KindProject    Kind = "project"
	KindTag        Kind = "tag"
	KindComment    Kind = "comment"
	KindLink       Kind = "link"
	KindAttachment Kind = "attachment"
)

// Kinds lists every entity kind in a fixed order.
var Kinds = []Kind{KindTask, KindEvent, KindNote, KindProject, KindTag, KindComment, KindLink, KindAttachment}

// Entity is one row of any entity table. Common columns are lifted into
// struct fields; the rest live in Fields keyed by column name.
type Entity struct {
	Kind      Kind           `json:"entityType"`
	ID        int64          `json:"id"`
	UserID    string         `json:"-"`
	Title     string         `json:"title"`
	Fields    map[string]any `json:"fields,omitempty"`
	Archived  bool           `json:"archived,omitempty"`
	Deleted   bool           `json:"deleted,omitempty"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// Filter narrows a list or search. Zero values mean "no constraint",
// except Limit which the caller is expected to have bounded.
type Filter struct {
	Query           string
	Status          string
	Priority        string
	ProjectID       *int64
	ParentType      Kind
	ParentID        *int64
	DueBefore       string
	DueAfter        string
	IncludeArchived bool
	IncludeDeleted  bool
	Limit           int
}

type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Language    string    `json:"language"`
	Timezone    string    `json:"timezone"`
	APIToken    string    `json:"-"`
	DiscordID   string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"seq"`
	Role           string    `json:"role"` // user, assistant
	Content        string    `json:"content"`
	ToolsUsed      []ToolUse `json:"toolsUsed,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ToolUse is the persisted trace of one tool call or its result.
type ToolUse struct {
	Type       string `json:"type"` // tool_call, tool_result
	ToolCallID string `json:"toolCallId"`
	Content    string `json:"content"`
}

// LogRecord is one persisted telemetry entry.
type LogRecord struct {
	Level          string
	Message        string
	UserID         string
	ConversationID string
	Context        string // JSON
	CreatedAt      time.Time
}
