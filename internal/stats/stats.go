// Package stats aggregates per-user counts for the assistant's context.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxProjectNames bounds ActiveProjectNames.
const MaxProjectNames = 5

type UserStats struct {
	OpenTasks          int      `json:"openTasks"`
	CompletedToday     int      `json:"completedToday"`
	DueToday           int      `json:"dueToday"`
	DueTomorrow        int      `json:"dueTomorrow"`
	Overdue            int      `json:"overdue"`
	EventsToday        int      `json:"eventsToday"`
	EventsTomorrow     int      `json:"eventsTomorrow"`
	ActiveProjects     int      `json:"activeProjects"`
	ActiveProjectNames []string `json:"activeProjectNames,omitempty"`
}

// Counter is the read-only slice of the repository the provider needs.
type Counter interface {
	CountOpenTasks(ctx context.Context, userID string) (int, error)
	CountTasksCompletedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	CountTasksDueOn(ctx context.Context, userID, date string) (int, error)
	CountOverdueTasks(ctx context.Context, userID, today string) (int, error)
	CountEventsBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	CountActiveProjects(ctx context.Context, userID string) (int, error)
	ActiveProjectNames(ctx context.Context, userID string, limit int) ([]string, error)
}

type Provider struct {
	repo Counter
}

func NewProvider(repo Counter) *Provider {
	return &Provider{repo: repo}
}

// Get runs every count concurrently. Any failing query fails the whole call;
// partial stats are never returned.
func (p *Provider) Get(ctx context.Context, userID string, now time.Time, loc *time.Location) (*UserStats, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)
	todayStr := today.Format(time.DateOnly)
	tomorrowStr := tomorrow.Format(time.DateOnly)

	var s UserStats
	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}

	count(&s.OpenTasks, func(ctx context.Context) (int, error) { return p.repo.CountOpenTasks(ctx, userID) })
	count(&s.CompletedToday, func(ctx context.Context) (int, error) {
		return p.repo.CountTasksCompletedBetween(ctx, userID, today, tomorrow)
	})
	count(&s.DueToday, func(ctx context.Context) (int, error) { return p.repo.CountTasksDueOn(ctx, userID, todayStr) })
	count(&s.DueTomorrow, func(ctx context.Context) (int, error) { return p.repo.CountTasksDueOn(ctx, userID, tomorrowStr) })
	count(&s.Overdue, func(ctx context.Context) (int, error) { return p.repo.CountOverdueTasks(ctx, userID, todayStr) })
	count(&s.EventsToday, func(ctx context.Context) (int, error) {
		return p.repo.CountEventsBetween(ctx, userID, today, tomorrow)
	})
	count(&s.EventsTomorrow, func(ctx context.Context) (int, error) {
		return p.repo.CountEventsBetween(ctx, userID, tomorrow, dayAfter)
	})
	count(&s.ActiveProjects, func(ctx context.Context) (int, error) { return p.repo.CountActiveProjects(ctx, userID) })
	g.Go(func() error {
		names, err := p.repo.ActiveProjectNames(ctx, userID, MaxProjectNames)
		if err != nil {
			return err
		}
		s.ActiveProjectNames = names
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading user stats: %w", err)
	}
	return &s, nil
}
