// Package engine fans out to the source adapters concurrently, merges
// whatever succeeded into one response, and reports what failed. One
// slow or broken upstream never takes the dashboard down with it.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
	"github.com/JGibbsWork/lifestack/internal/sources"
)

// CalendarSource is the slice of the calendar adapter the engine uses.
type CalendarSource interface {
	EventsForDate(ctx context.Context, date string) ([]sources.Event, error)
	EventsForRange(ctx context.Context, from, to time.Time) ([]sources.Event, error)
}

// TaskSource fetches tasks from the task backend.
type TaskSource interface {
	Tasks(ctx context.Context, typ string) ([]sources.Task, error)
}

// FitnessSource fetches activities from the fitness backend.
type FitnessSource interface {
	Activities(ctx context.Context, p sources.ActivityParams) ([]sources.Activity, error)
}

// TaskDatabase reads task rows out of a workspace database.
type TaskDatabase interface {
	QueryDatabase(ctx context.Context, id string) ([]sources.Task, error)
}

// Engine merges multiple sources into unified views. Failed sections
// come back empty with the failure reported alongside, never as an
// error for the whole call.
type Engine struct {
	Cache    *cache.Store
	Calendar CalendarSource
	Tasks    TaskSource
	Fitness  FitnessSource
	Notion   TaskDatabase

	// TaskDatabaseID is an optional Notion database merged into the
	// task views. Empty disables the merge.
	TaskDatabaseID string

	now func() time.Time
}

// New creates an Engine over the given collaborators.
func New(c *cache.Store, cal CalendarSource, tasks TaskSource, fitness FitnessSource, notion TaskDatabase) *Engine {
	return &Engine{
		Cache:    c,
		Calendar: cal,
		Tasks:    tasks,
		Fitness:  fitness,
		Notion:   notion,
		now:      time.Now,
	}
}

// SourceError reports one contributing fetch that failed.
type SourceError struct {
	Service     string `json:"service"`
	Message     string `json:"error"`
	NeedsReauth bool   `json:"needs_reauthorization,omitempty"`
	RateLimited bool   `json:"rate_limited,omitempty"`
}

// Result is a merged view. Errors is present only when at least one
// source failed; its absence signals full success.
type Result struct {
	Data   map[string]any `json:"data"`
	Errors []SourceError  `json:"errors,omitempty"`
}

// Partial reports whether any contributing source failed.
func (r *Result) Partial() bool { return len(r.Errors) > 0 }

type fetchFunc func(ctx context.Context) (any, error)

type fetch struct {
	service string
	empty   any // neutral value for the section when the fetch fails
	run     fetchFunc
}

// settleAll runs every fetch concurrently and waits for all of them
// to finish, success or failure. No fetch is cancelled because a
// sibling failed, and the merged result does not depend on completion
// order.
func settleAll(ctx context.Context, fetches map[string]fetch) *Result {
	type outcome struct {
		section string
		value   any
		err     error
	}

	var wg sync.WaitGroup
	outcomes := make(chan outcome, len(fetches))

	for section, f := range fetches {
		wg.Add(1)
		go func(section string, f fetch) {
			defer wg.Done()
			v, err := f.run(ctx)
			outcomes <- outcome{section: section, value: v, err: err}
		}(section, f)
	}
	wg.Wait()
	close(outcomes)

	result := &Result{Data: make(map[string]any, len(fetches))}
	for o := range outcomes {
		if o.err != nil {
			result.Data[o.section] = fetches[o.section].empty
			result.Errors = append(result.Errors, classifyFailure(fetches[o.section].service, o.err))
			continue
		}
		result.Data[o.section] = o.value
	}
	return result
}

func classifyFailure(service string, err error) SourceError {
	se := SourceError{Service: service, Message: err.Error()}

	var ae *sources.AuthError
	if errors.As(err, &ae) {
		se.NeedsReauth = true
	}
	var re *sources.RateLimitError
	if errors.As(err, &re) {
		se.RateLimited = true
	}
	return se
}

// cached returns the merged view under key if present.
func (e *Engine) cached(key string) (*Result, bool) {
	if v, ok := e.Cache.Get(key); ok {
		if r, ok := v.(*Result); ok {
			return r, true
		}
	}
	return nil, false
}

// store caches a fully-successful merged view. Partial results are
// not cached so a recovered upstream is retried on the next request
// instead of hiding behind a stale error for the TTL.
func (e *Engine) store(key string, r *Result) {
	if r.Partial() {
		return
	}
	e.Cache.Set(key, r, cache.TTLUnified)
}
