package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
	"github.com/JGibbsWork/lifestack/internal/sources"
)

// Today merges today's calendar events, open tasks, and the week's
// recent activities into one dashboard view.
func (e *Engine) Today(ctx context.Context) *Result {
	key := cache.UnifiedTodayKey()
	if r, ok := e.cached(key); ok {
		return r
	}

	now := e.now()
	today := now.Format("2006-01-02")
	weekAgo := now.AddDate(0, 0, -7).Unix()

	result := settleAll(ctx, map[string]fetch{
		"calendar": {
			service: sources.ServiceCalendar,
			empty:   []sources.Event{},
			run: func(ctx context.Context) (any, error) {
				return e.Calendar.EventsForDate(ctx, today)
			},
		},
		"tasks": {
			service: sources.ServiceHabitica,
			empty:   []sources.Task{},
			run: func(ctx context.Context) (any, error) {
				return e.fetchTasks(ctx, "all", false)
			},
		},
		"fitness": {
			service: sources.ServiceStrava,
			empty:   []sources.Activity{},
			run: func(ctx context.Context) (any, error) {
				return e.Fitness.Activities(ctx, sources.ActivityParams{PerPage: 10, After: weekAgo})
			},
		},
	})
	result.Data["date"] = today

	e.store(key, result)
	return result
}

// Week merges the next seven days of calendar events with the last
// seven days of activities.
func (e *Engine) Week(ctx context.Context) *Result {
	key := cache.UnifiedWeekKey()
	if r, ok := e.cached(key); ok {
		return r
	}

	now := e.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	result := settleAll(ctx, map[string]fetch{
		"calendar": {
			service: sources.ServiceCalendar,
			empty:   []sources.Event{},
			run: func(ctx context.Context) (any, error) {
				return e.Calendar.EventsForRange(ctx, dayStart, dayStart.AddDate(0, 0, 7))
			},
		},
		"fitness": {
			service: sources.ServiceStrava,
			empty:   []sources.Activity{},
			run: func(ctx context.Context) (any, error) {
				return e.Fitness.Activities(ctx, sources.ActivityParams{PerPage: 30, After: now.AddDate(0, 0, -7).Unix()})
			},
		},
	})
	result.Data["start"] = dayStart.Format("2006-01-02")

	e.store(key, result)
	return result
}

// TaskView merges Habitica tasks with the optional Notion task
// database. filter selects "todos", "dailys", or "all";
// includeCompleted keeps finished tasks in the list.
func (e *Engine) TaskView(ctx context.Context, filter string, includeCompleted bool) (*Result, error) {
	switch filter {
	case "todos", "dailys", "all":
	default:
		return nil, &sources.ValidationError{Field: "filter", Reason: "must be todos, dailys, or all"}
	}

	key := cache.UnifiedTasksKey(filter, includeCompleted)
	if r, ok := e.cached(key); ok {
		return r, nil
	}

	fetches := map[string]fetch{
		"tasks": {
			service: sources.ServiceHabitica,
			empty:   []sources.Task{},
			run: func(ctx context.Context) (any, error) {
				return e.fetchTasks(ctx, filter, includeCompleted)
			},
		},
	}
	if e.Notion != nil && e.TaskDatabaseID != "" && filter != "dailys" {
		fetches["workspace_tasks"] = fetch{
			service: sources.ServiceNotion,
			empty:   []sources.Task{},
			run: func(ctx context.Context) (any, error) {
				tasks, err := e.Notion.QueryDatabase(ctx, e.TaskDatabaseID)
				if err != nil {
					return nil, err
				}
				return filterTasks(tasks, includeCompleted), nil
			},
		}
	}

	result := settleAll(ctx, fetches)
	e.store(key, result)
	return result, nil
}

// fetchTasks pulls the requested Habitica task types sequentially
// within one settled fetch, sorted by due date.
func (e *Engine) fetchTasks(ctx context.Context, filter string, includeCompleted bool) ([]sources.Task, error) {
	types := []string{"todos", "dailys"}
	if filter == "todos" || filter == "dailys" {
		types = []string{filter}
	}

	var all []sources.Task
	for _, typ := range types {
		tasks, err := e.Tasks.Tasks(ctx, typ)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}

	all = filterTasks(all, includeCompleted)
	sort.SliceStable(all, func(i, j int) bool {
		di, dj := all[i].Due, all[j].Due
		switch {
		case di == nil && dj == nil:
			return strings.ToLower(all[i].Title) < strings.ToLower(all[j].Title)
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return all, nil
}

func filterTasks(tasks []sources.Task, includeCompleted bool) []sources.Task {
	if includeCompleted {
		if tasks == nil {
			return []sources.Task{}
		}
		return tasks
	}
	open := make([]sources.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Completed {
			open = append(open, t)
		}
	}
	return open
}
