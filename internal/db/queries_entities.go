package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

func (s kindSpec) has(col string) bool {
	return slices.Contains(s.extra, col)
}

func (s kindSpec) selectList() string {
	parts := []string{"id", "user_id", s.titleCol}
	parts = append(parts, s.extra...)
	parts = append(parts, "archived", "deleted_at IS NOT NULL", "created_at", "updated_at")
	return strings.Join(parts, ", ")
}

// ListEntities returns a user's entities of one kind matching f. Archived and
// soft-deleted rows are excluded unless f asks for them.
func (d *DB) ListEntities(ctx context.Context, userID string, kind Kind, f Filter) ([]Entity, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + spec.selectList() + " FROM " + spec.table + " WHERE user_id = ?"
	args := []any{userID}

	if !f.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if !f.IncludeArchived {
		query += " AND archived = 0"
	}
	if f.Status != "" {
		if !spec.has("status") {
			return nil, fmt.Errorf("%s has no status", kind)
		}
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		if !spec.has("priority") {
			return nil, fmt.Errorf("%s has no priority", kind)
		}
		query += " AND priority = ?"
		args = append(args, f.Priority)
	}
	if f.ProjectID != nil {
		if !spec.has("project_id") {
			return nil, fmt.Errorf("%s has no project", kind)
		}
		query += " AND project_id = ?"
		args = append(args, *f.ProjectID)
	}
	if f.ParentType != "" || f.ParentID != nil {
		if !spec.has("entity_type") {
			return nil, fmt.Errorf("%s is not attached to other entities", kind)
		}
		if f.ParentType != "" {
			query += " AND entity_type = ?"
			args = append(args, string(f.ParentType))
		}
		if f.ParentID != nil {
			query += " AND entity_id = ?"
			args = append(args, *f.ParentID)
		}
	}
	if f.DueBefore != "" || f.DueAfter != "" {
		if !spec.has("due_date") {
			return nil, fmt.Errorf("%s has no due date", kind)
		}
		if f.DueBefore != "" {
			query += " AND due_date IS NOT NULL AND due_date <= ?"
			args = append(args, f.DueBefore)
		}
		if f.DueAfter != "" {
			query += " AND due_date IS NOT NULL AND due_date >= ?"
			args = append(args, f.DueAfter)
		}
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		var ors []string
		for _, col := range spec.search {
			ors = append(ors, col+` LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		query += " AND (" + strings.Join(ors, " OR ") + ")"
	}
	query += " ORDER BY " + spec.order + ", id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return d.scanEntities(ctx, kind, spec, query, args...)
}

// GetEntity loads one entity owned by userID.
func (d *DB) GetEntity(ctx context.Context, userID string, kind Kind, id int64, includeDeleted bool) (*Entity, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + spec.selectList() + " FROM " + spec.table + " WHERE id = ? AND user_id = ?"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	entities, err := d.scanEntities(ctx, kind, spec, query, id, userID)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return &entities[0], nil
}

// CreateEntity inserts a new entity for userID and returns its ID.
func (d *DB) CreateEntity(ctx context.Context, userID string, kind Kind, fields map[string]any) (int64, error) {
	spec, err := specFor(kind)
	if err != nil {
		return 0, err
	}
	if _, ok := fields[spec.titleCol]; !ok {
		return 0, fmt.Errorf("creating %s: %s is required", kind, spec.titleCol)
	}
	names := make([]string, 0, len(fields))
	for col := range fields {
		if !spec.writable[col] {
			return 0, fmt.Errorf("disallowed column %q for %s", col, kind)
		}
		names = append(names, col)
	}
	sort.Strings(names)

	now := formatTime(time.Now())
	columns := append([]string{"user_id"}, names...)
	columns = append(columns, "created_at", "updated_at")
	args := []any{userID}
	for _, col := range names {
		args = append(args, fields[col])
	}
	args = append(args, now, now)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		spec.table, strings.Join(columns, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", kind, err)
	}
	return res.LastInsertId()
}

// UpdateEntity sets only the given columns; everything else is untouched.
func (d *DB) UpdateEntity(ctx context.Context, userID string, kind Kind, id int64, fields map[string]any) error {
	return d.updateRow(ctx, kind, userID, id, fields)
}

// DeleteEntity soft-deletes an entity.
func (d *DB) DeleteEntity(ctx context.Context, userID string, kind Kind, id int64) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	res, err := d.conn.ExecContext(ctx,
		"UPDATE "+spec.table+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL",
		now, now, id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", kind, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

// CompleteTask marks a task as done.
func (d *DB) CompleteTask(ctx context.Context, userID string, id int64, at time.Time) error {
	ts := formatTime(at)
	res, err := d.conn.ExecContext(ctx,
		"UPDATE tasks SET status = 'done', completed_at = ?, updated_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL",
		ts, ts, id, userID,
	)
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func (d *DB) scanEntities(ctx context.Context, kind Kind, spec kindSpec, query string, args ...any) ([]Entity, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", spec.table, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e := Entity{Kind: kind}
		var title sql.NullString
		extra := make([]any, len(spec.extra))
		dest := []any{&e.ID, &e.UserID, &title}
		for i := range extra {
			dest = append(dest, &extra[i])
		}
		dest = append(dest, &e.Archived, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind, err)
		}
		e.Title = title.String
		e.Fields = make(map[string]any, len(spec.extra))
		for i, col := range spec.extra {
			if v := normalize(extra[i]); v != nil {
				e.Fields[col] = v
			}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		if t == "" {
			return nil
		}
		return t
	}
	return v
}

// IsNotFound reports whether err means the row is missing or not owned.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
