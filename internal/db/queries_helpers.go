package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// kindSpec describes how an entity kind maps onto its table.
type kindSpec struct {
	table    string
	titleCol string
	// extra holds the non-common columns, in SELECT order.
	extra []string
	// writable is the allow-list for create and update.
	writable map[string]bool
	// search lists the text columns matched by Filter.Query.
	search []string
	order  string
}

var kindSpecs = map[Kind]kindSpec{
	KindTask: {
		table: "tasks", titleCol: "title",
		extra:    []string{"project_id", "notes", "status", "priority", "due_date", "completed_at"},
		writable: cols("title", "project_id", "notes", "status", "priority", "due_date", "archived"),
		search:   []string{"title", "notes"},
		order:    "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 WHEN 'low' THEN 3 END, updated_at DESC",
	},
	KindEvent: {
		table: "events", titleCol: "title",
		extra:    []string{"project_id", "description", "location", "starts_at", "ends_at", "recurrence"},
		writable: cols("title", "project_id", "description", "location", "starts_at", "ends_at", "recurrence", "archived"),
		search:   []string{"title", "description", "location"},
		order:    "starts_at",
	},
	KindNote: {
		table: "notes", titleCol: "title",
		extra:    []string{"project_id", "content"},
		writable: cols("title", "project_id", "content", "archived"),
		search:   []string{"title", "content"},
		order:    "updated_at DESC",
	},
	KindProject: {
		table: "projects", titleCol: "name",
		extra:    []string{"description", "status"},
		writable: cols("name", "description", "status", "archived"),
		search:   []string{"name", "description"},
		order:    "updated_at DESC",
	},
	KindTag: {
		table: "tags", titleCol: "name",
		extra:    []string{"color"},
		writable: cols("name", "color", "archived"),
		search:   []string{"name"},
		order:    "name",
	},
	KindComment: {
		table: "comments", titleCol: "content",
		extra:    []string{"entity_type", "entity_id"},
		writable: cols("content", "entity_type", "entity_id", "archived"),
		search:   []string{"content"},
		order:    "created_at DESC",
	},
	KindLink: {
		table: "links", titleCol: "url",
		extra:    []string{"entity_type", "entity_id", "title"},
		writable: cols("url", "title", "entity_type", "entity_id", "archived"),
		search:   []string{"url", "title"},
		order:    "created_at DESC",
	},
	KindAttachment: {
		table: "attachments", titleCol: "filename",
		extra:    []string{"entity_type", "entity_id", "mime_type", "size_bytes"},
		writable: cols("filename", "mime_type", "size_bytes", "entity_type", "entity_id", "archived"),
		search:   []string{"filename"},
		order:    "created_at DESC",
	},
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func specFor(kind Kind) (kindSpec, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return kindSpec{}, fmt.Errorf("unknown entity type: %s", kind)
	}
	return spec, nil
}

// TitleColumn returns the column that holds an entity's display name.
func TitleColumn(kind Kind) string {
	return kindSpecs[kind].titleCol
}

// HasColumn reports whether kind carries column, title included.
func HasColumn(kind Kind, column string) bool {
	spec, ok := kindSpecs[kind]
	return ok && (column == spec.titleCol || spec.has(column))
}

// Writable reports whether column may be set on kind.
func Writable(kind Kind, column string) bool {
	return kindSpecs[kind].writable[column]
}

// updateRow sets the given columns on one row owned by userID. Soft-deleted
// rows are treated as missing.
func (d *DB) updateRow(ctx context.Context, kind Kind, userID string, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	// Sorted so the statement text is stable.
	names := make([]string, 0, len(fields))
	for col := range fields {
		if !spec.writable[col] {
			return fmt.Errorf("disallowed column %q for %s", col, kind)
		}
		names = append(names, col)
	}
	sort.Strings(names)

	var setClauses []string
	var args []any
	for _, col := range names {
		setClauses = append(setClauses, col+" = ?")
		args = append(args, fields[col])
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id, userID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND user_id = ? AND deleted_at IS NULL",
		spec.table, strings.Join(setClauses, ", "))
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", kind, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" || s == "null" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
