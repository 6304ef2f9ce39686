package tools

import (
	"slices"
	"strings"
	"time"

	"github.com/chris/dayplan/internal/db"
)

var (
	taskStatuses    = []string{"open", "in_progress", "done"}
	projectStatuses = []string{"active", "paused", "done"}
	priorities      = []string{"low", "normal", "high", "urgent"}
	parentKinds     = []db.Kind{db.KindTask, db.KindEvent, db.KindNote, db.KindProject}
)

// Accepted layouts for event times, tried in order.
var dateTimeLayouts = []string{time.RFC3339, time.DateTime, "2006-01-02 15:04", "2006-01-02T15:04", time.DateOnly}

func parseKind(s string) (db.Kind, error) {
	for _, k := range db.Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	if s == "" {
		return "", invalidf("entityType is required")
	}
	return "", invalidf("unknown entityType %q", s)
}

func checkLimit(limit int) error {
	if limit < 0 {
		return invalidf("limit must not be negative")
	}
	return nil
}

// effectiveLimit applies the default and the hard maximum.
func effectiveLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func checkDate(field, v string) error {
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return invalidf("%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}

func parseDateTime(v string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func checkStatus(kind db.Kind, status string) error {
	switch kind {
	case db.KindTask:
		if !slices.Contains(taskStatuses, status) {
			return invalidf("task status must be one of %s", strings.Join(taskStatuses, ", "))
		}
	case db.KindProject:
		if !slices.Contains(projectStatuses, status) {
			return invalidf("project status must be one of %s", strings.Join(projectStatuses, ", "))
		}
	default:
		return invalidf("%s has no status", kind)
	}
	return nil
}

func checkPriority(kind db.Kind, p string) error {
	if kind != db.KindTask {
		return invalidf("%s has no priority", kind)
	}
	if !slices.Contains(priorities, p) {
		return invalidf("priority must be one of %s", strings.Join(priorities, ", "))
	}
	return nil
}

type queryInput struct {
	EntityType      string `json:"entityType" jsonschema:"required,enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment"`
	Status          string `json:"status,omitempty" jsonschema_description:"Task status (open, in_progress, done) or project status (active, paused, done)"`
	Priority        string `json:"priority,omitempty" jsonschema:"enum=low,enum=normal,enum=high,enum=urgent" jsonschema_description:"Task priority"`
	ProjectID       *int64 `json:"projectId,omitempty" jsonschema_description:"Only tasks, events or notes in this project"`
	ParentType      string `json:"parentType,omitempty" jsonschema_description:"For comments, links and attachments: the type of the entity they belong to"`
	ParentID        *int64 `json:"parentId,omitempty" jsonschema_description:"For comments, links and attachments: the id of the entity they belong to"`
	DueBefore       string `json:"dueBefore,omitempty" jsonschema_description:"Tasks due on or before this date (YYYY-MM-DD)"`
	DueAfter        string `json:"dueAfter,omitempty" jsonschema_description:"Tasks due on or after this date (YYYY-MM-DD)"`
	IncludeArchived bool   `json:"includeArchived,omitempty" jsonschema_description:"Include archived records"`
	IncludeDeleted  bool   `json:"includeDeleted,omitempty" jsonschema_description:"Include deleted records"`
	Limit           int    `json:"limit,omitempty" jsonschema_description:"Maximum results (default 10, at most 100)"`
}

func (in queryInput) Validate() error {
	kind, err := parseKind(in.EntityType)
	if err != nil {
		return err
	}
	if in.Status != "" {
		if err := checkStatus(kind, in.Status); err != nil {
			return err
		}
	}
	if in.Priority != "" {
		if err := checkPriority(kind, in.Priority); err != nil {
			return err
		}
	}
	if in.ProjectID != nil && !db.HasColumn(kind, "project_id") {
		return invalidf("%s has no project", kind)
	}
	if in.ParentType != "" || in.ParentID != nil {
		if !db.HasColumn(kind, "entity_type") {
			return invalidf("%s is not attached to other entities", kind)
		}
		if in.ParentType != "" && !slices.Contains(parentKinds, db.Kind(in.ParentType)) {
			return invalidf("parentType must be task, event, note or project")
		}
	}
	for _, d := range [][2]string{{"dueBefore", in.DueBefore}, {"dueAfter", in.DueAfter}} {
		if d[1] == "" {
			continue
		}
		if kind != db.KindTask {
			return invalidf("%s has no due date", kind)
		}
		if err := checkDate(d[0], d[1]); err != nil {
			return err
		}
	}
	return checkLimit(in.Limit)
}

func (in queryInput) filter() db.Filter {
	return db.Filter{
		Status:          in.Status,
		Priority:        in.Priority,
		ProjectID:       in.ProjectID,
		ParentType:      db.Kind(in.ParentType),
		ParentID:        in.ParentID,
		DueBefore:       in.DueBefore,
		DueAfter:        in.DueAfter,
		IncludeArchived: in.IncludeArchived,
		IncludeDeleted:  in.IncludeDeleted,
		Limit:           effectiveLimit(in.Limit),
	}
}

type searchInput struct {
	Query           string `json:"query" jsonschema:"required" jsonschema_description:"Text to look for in titles, names and content"`
	EntityType      string `json:"entityType,omitempty" jsonschema:"enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment" jsonschema_description:"Restrict the search to one type; omit to search everything"`
	IncludeArchived bool   `json:"includeArchived,omitempty" jsonschema_description:"Include archived records"`
	IncludeDeleted  bool   `json:"includeDeleted,omitempty" jsonschema_description:"Include deleted records"`
	Limit           int    `json:"limit,omitempty" jsonschema_description:"Maximum results (default 10, at most 100)"`
}

func (in searchInput) Validate() error {
	if strings.TrimSpace(in.Query) == "" {
		return invalidf("query is required")
	}
	if in.EntityType != "" {
		if _, err := parseKind(in.EntityType); err != nil {
			return err
		}
	}
	return checkLimit(in.Limit)
}

type getInput struct {
	EntityType     string `json:"entityType" jsonschema:"required,enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment"`
	ID             int64  `json:"id" jsonschema:"required"`
	IncludeDeleted bool   `json:"includeDeleted,omitempty"`
}

func (in getInput) Validate() error {
	if _, err := parseKind(in.EntityType); err != nil {
		return err
	}
	if in.ID <= 0 {
		return invalidf("id must be a positive integer")
	}
	return nil
}

// EntityFields are the settable attributes across all kinds. Each kind
// accepts only the ones it has; nil means "not given".
type EntityFields struct {
	Title       *string `json:"title,omitempty" jsonschema_description:"Title of a task, event, note or link; name of a project or tag"`
	Content     *string `json:"content,omitempty" jsonschema_description:"Body of a note or comment"`
	Notes       *string `json:"notes,omitempty" jsonschema_description:"Task notes"`
	Description *string `json:"description,omitempty" jsonschema_description:"Event or project description"`
	Status      *string `json:"status,omitempty" jsonschema_description:"Task status (open, in_progress, done) or project status (active, paused, done)"`
	Priority    *string `json:"priority,omitempty" jsonschema:"enum=low,enum=normal,enum=high,enum=urgent"`
	DueDate     *string `json:"dueDate,omitempty" jsonschema_description:"Task due date (YYYY-MM-DD); empty string clears it"`
	ProjectID   *int64  `json:"projectId,omitempty" jsonschema_description:"Project a task, event or note belongs to"`
	StartsAt    *string `json:"startsAt,omitempty" jsonschema_description:"Event start (YYYY-MM-DD HH:MM in the user's timezone)"`
	EndsAt      *string `json:"endsAt,omitempty" jsonschema_description:"Event end (YYYY-MM-DD HH:MM in the user's timezone)"`
	Location    *string `json:"location,omitempty"`
	Recurrence  *string `json:"recurrence,omitempty" jsonschema_description:"Event recurrence as a five-field cron expression, e.g. 0 9 * * 1-5"`
	Color       *string `json:"color,omitempty" jsonschema_description:"Tag color"`
	URL         *string `json:"url,omitempty" jsonschema_description:"Link URL"`
	Filename    *string `json:"filename,omitempty" jsonschema_description:"Attachment file name"`
	MimeType    *string `json:"mimeType,omitempty"`
	SizeBytes   *int64  `json:"sizeBytes,omitempty"`
	ParentType  *string `json:"parentType,omitempty" jsonschema_description:"For comments, links and attachments: type of the entity they belong to"`
	ParentID    *int64  `json:"parentId,omitempty" jsonschema_description:"For comments, links and attachments: id of the entity they belong to"`
	Archived    *bool   `json:"archived,omitempty"`
}

// columns maps the given fields onto kind's columns. Times are interpreted
// in loc and stored in UTC.
func (f EntityFields) columns(kind db.Kind, loc *time.Location) (map[string]any, error) {
	out := map[string]any{}
	set := func(col string, v any) error {
		if !db.Writable(kind, col) {
			return invalidf("%s cannot be set on a %s", col, kind)
		}
		out[col] = v
		return nil
	}
	text := func(col string, p *string) error {
		if p == nil {
			return nil
		}
		var v any = *p
		if strings.TrimSpace(*p) == "" {
			v = nil
		}
		return set(col, v)
	}

	titleCol := db.TitleColumn(kind)
	if f.Title != nil {
		col := titleCol
		if kind == db.KindLink {
			col = "title"
		}
		if col == "url" || col == "filename" || col == "content" {
			return nil, invalidf("a %s has no title", kind)
		}
		if col == titleCol && strings.TrimSpace(*f.Title) == "" {
			return nil, invalidf("title must not be empty")
		}
		if err := text(col, f.Title); err != nil {
			return nil, err
		}
	}
	if f.Content != nil && titleCol == "content" && strings.TrimSpace(*f.Content) == "" {
		return nil, invalidf("content must not be empty")
	}
	for _, t := range []struct {
		col string
		p   *string
	}{
		{"content", f.Content},
		{"notes", f.Notes},
		{"description", f.Description},
		{"location", f.Location},
		{"color", f.Color},
		{"url", f.URL},
		{"filename", f.Filename},
		{"mime_type", f.MimeType},
	} {
		if err := text(t.col, t.p); err != nil {
			return nil, err
		}
	}

	if f.Status != nil {
		if err := checkStatus(kind, *f.Status); err != nil {
			return nil, err
		}
		if err := set("status", *f.Status); err != nil {
			return nil, err
		}
	}
	if f.Priority != nil {
		if err := checkPriority(kind, *f.Priority); err != nil {
			return nil, err
		}
		if err := set("priority", *f.Priority); err != nil {
			return nil, err
		}
	}
	if f.DueDate != nil {
		var v any
		if *f.DueDate != "" {
			if err := checkDate("dueDate", *f.DueDate); err != nil {
				return nil, err
			}
			v = *f.DueDate
		}
		if err := set("due_date", v); err != nil {
			return nil, err
		}
	}
	if f.ProjectID != nil {
		if err := set("project_id", *f.ProjectID); err != nil {
			return nil, err
		}
	}
	for _, t := range []struct {
		field, col string
		p          *string
	}{
		{"startsAt", "starts_at", f.StartsAt},
		{"endsAt", "ends_at", f.EndsAt},
	} {
		if t.p == nil {
			continue
		}
		at, ok := parseDateTime(*t.p, loc)
		if !ok {
			return nil, invalidf("%s must look like YYYY-MM-DD HH:MM", t.field)
		}
		if err := set(t.col, at.UTC().Format(time.DateTime)); err != nil {
			return nil, err
		}
	}
	if f.Recurrence != nil {
		var v any
		if strings.TrimSpace(*f.Recurrence) != "" {
			if _, err := db.ParseRecurrence(*f.Recurrence); err != nil {
				return nil, invalidf("%v", err)
			}
			v = *f.Recurrence
		}
		if err := set("recurrence", v); err != nil {
			return nil, err
		}
	}
	if f.SizeBytes != nil {
		if *f.SizeBytes < 0 {
			return nil, invalidf("sizeBytes must not be negative")
		}
		if err := set("size_bytes", *f.SizeBytes); err != nil {
			return nil, err
		}
	}
	if f.ParentType != nil {
		if !slices.Contains(parentKinds, db.Kind(*f.ParentType)) {
			return nil, invalidf("parentType must be task, event, note or project")
		}
		if err := set("entity_type", *f.ParentType); err != nil {
			return nil, err
		}
	}
	if f.ParentID != nil {
		if err := set("entity_id", *f.ParentID); err != nil {
			return nil, err
		}
	}
	if f.Archived != nil {
		if err := set("archived", *f.Archived); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type createInput struct {
	EntityType string `json:"entityType" jsonschema:"required,enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment"`
	EntityFields
}

func (in createInput) Validate() error {
	kind, err := parseKind(in.EntityType)
	if err != nil {
		return err
	}
	// Times are checked again against the user's timezone when the
	// columns are built; UTC is enough to reject malformed input here.
	cols, err := in.columns(kind, time.UTC)
	if err != nil {
		return err
	}
	if cols[db.TitleColumn(kind)] == nil {
		return invalidf("%s is required to create a %s", fieldForColumn(db.TitleColumn(kind)), kind)
	}
	if kind == db.KindEvent && cols["starts_at"] == nil {
		return invalidf("startsAt is required to create an event")
	}
	if db.HasColumn(kind, "entity_type") && (cols["entity_type"] == nil || cols["entity_id"] == nil) {
		return invalidf("parentType and parentId are required to create a %s", kind)
	}
	return nil
}

type updateInput struct {
	EntityType string `json:"entityType" jsonschema:"required,enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment"`
	ID         int64  `json:"id" jsonschema:"required"`
	EntityFields
}

func (in updateInput) Validate() error {
	kind, err := parseKind(in.EntityType)
	if err != nil {
		return err
	}
	if in.ID <= 0 {
		return invalidf("id must be a positive integer")
	}
	cols, err := in.columns(kind, time.UTC)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return invalidf("no fields to update")
	}
	if _, ok := cols[db.TitleColumn(kind)]; ok && cols[db.TitleColumn(kind)] == nil {
		return invalidf("%s must not be empty", fieldForColumn(db.TitleColumn(kind)))
	}
	return nil
}

type completeInput struct {
	ID int64 `json:"id" jsonschema:"required" jsonschema_description:"Task id"`
}

func (in completeInput) Validate() error {
	if in.ID <= 0 {
		return invalidf("id must be a positive integer")
	}
	return nil
}

type deleteInput struct {
	EntityType string `json:"entityType" jsonschema:"required,enum=task,enum=event,enum=note,enum=project,enum=tag,enum=comment,enum=link,enum=attachment"`
	ID         int64  `json:"id" jsonschema:"required"`
	Confirm    bool   `json:"confirm,omitempty" jsonschema_description:"Set to true only after the user explicitly confirmed the deletion"`
}

func (in deleteInput) Validate() error {
	if _, err := parseKind(in.EntityType); err != nil {
		return err
	}
	if in.ID <= 0 {
		return invalidf("id must be a positive integer")
	}
	return nil
}

type overviewInput struct{}

func (overviewInput) Validate() error { return nil }

func fieldForColumn(col string) string {
	switch col {
	case "name":
		return "title"
	}
	return col
}
