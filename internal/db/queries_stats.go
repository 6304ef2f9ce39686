package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const liveRow = "deleted_at IS NULL AND archived = 0"

func (d *DB) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", what, err)
	}
	return n, nil
}

// CountOpenTasks counts tasks that are not done.
func (d *DB) CountOpenTasks(ctx context.Context, userID string) (int, error) {
	return d.count(ctx, "open tasks",
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status != 'done' AND "+liveRow, userID)
}

// CountTasksCompletedBetween counts tasks completed in [from, to).
func (d *DB) CountTasksCompletedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	return d.count(ctx, "completed tasks",
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status = 'done' AND completed_at >= ? AND completed_at < ? AND "+liveRow,
		userID, formatTime(from), formatTime(to))
}

// CountTasksDueOn counts open tasks due on date (YYYY-MM-DD).
func (d *DB) CountTasksDueOn(ctx context.Context, userID, date string) (int, error) {
	return d.count(ctx, "tasks due",
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status != 'done' AND due_date = ? AND "+liveRow,
		userID, date)
}

// CountOverdueTasks counts open tasks due before today (YYYY-MM-DD).
func (d *DB) CountOverdueTasks(ctx context.Context, userID, today string) (int, error) {
	return d.count(ctx, "overdue tasks",
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status != 'done' AND due_date IS NOT NULL AND due_date < ? AND "+liveRow,
		userID, today)
}

// CountEventsBetween counts events with an occurrence in [from, to).
// Recurrence is evaluated in from's location.
func (d *DB) CountEventsBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT starts_at, COALESCE(recurrence,'') FROM events
		WHERE user_id = ? AND starts_at < ? AND (recurrence IS NOT NULL OR starts_at >= ?) AND `+liveRow,
		userID, formatTime(to), formatTime(from))
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var startsAt, recurrence string
		if err := rows.Scan(&startsAt, &recurrence); err != nil {
			return 0, fmt.Errorf("scanning event: %w", err)
		}
		start := parseTime(startsAt).In(from.Location())
		if OccursBetween(start, recurrence, from, to) {
			n++
		}
	}
	return n, rows.Err()
}

// CountActiveProjects counts projects with status active.
func (d *DB) CountActiveProjects(ctx context.Context, userID string) (int, error) {
	return d.count(ctx, "active projects",
		"SELECT COUNT(*) FROM projects WHERE user_id = ? AND status = 'active' AND "+liveRow, userID)
}

// ActiveProjectNames returns up to limit active project names, most recently updated first.
func (d *DB) ActiveProjectNames(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT name FROM projects WHERE user_id = ? AND status = 'active' AND "+liveRow+" ORDER BY updated_at DESC, id LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing active projects: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		names = append(names, name.String)
	}
	return names, rows.Err()
}
