package db

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseRecurrence validates a standard five-field cron expression.
func ParseRecurrence(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence %q: %w", expr, err)
	}
	return sched, nil
}

// OccursBetween reports whether an event starting at start, repeating on
// recurrence (may be empty), has an occurrence in [from, to).
func OccursBetween(start time.Time, recurrence string, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	if !start.Before(from) {
		return true
	}
	if recurrence == "" {
		return false
	}
	sched, err := ParseRecurrence(recurrence)
	if err != nil {
		return false
	}
	next := sched.Next(from.Add(-time.Second))
	return !next.IsZero() && next.Before(to)
}

// AnnotateOccurrence sets next_occurrence on a recurring event. The
// schedule is evaluated in loc, matching CountEventsBetween.
func AnnotateOccurrence(e *Entity, now time.Time, loc *time.Location) {
	if e.Kind != KindEvent {
		return
	}
	rec, _ := e.Fields["recurrence"].(string)
	if rec == "" {
		return
	}
	sched, err := ParseRecurrence(rec)
	if err != nil {
		return
	}
	if s, ok := e.Fields["starts_at"].(string); ok {
		if start := parseTime(s); start.After(now) {
			e.Fields["next_occurrence"] = formatTime(start)
			return
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	if next := sched.Next(now.In(loc)); !next.IsZero() {
		e.Fields["next_occurrence"] = formatTime(next)
	}
}
