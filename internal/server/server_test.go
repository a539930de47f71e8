package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
	"github.com/JGibbsWork/lifestack/internal/engine"
	"github.com/JGibbsWork/lifestack/internal/guard"
	"github.com/JGibbsWork/lifestack/internal/sources"
	"github.com/JGibbsWork/lifestack/internal/store"
)

const testToken = "test-token"

type fakeCalendar struct {
	events []sources.Event
	err    error
}

func (f *fakeCalendar) EventsForDate(ctx context.Context, date string) ([]sources.Event, error) {
	return f.events, f.err
}

func (f *fakeCalendar) EventsForRange(ctx context.Context, from, to time.Time) ([]sources.Event, error) {
	return f.events, f.err
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, in sources.EventInput) (*sources.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	if in.Title == "" {
		return nil, &sources.ValidationError{Field: "title", Reason: "required"}
	}
	return &sources.Event{ID: "evt-new", Title: in.Title, Source: sources.ServiceCalendar}, nil
}

type fakeTasks struct {
	tasks  []sources.Task
	err    error
	scored []string
}

func (f *fakeTasks) Tasks(ctx context.Context, typ string) ([]sources.Task, error) {
	return f.tasks, f.err
}

func (f *fakeTasks) CreateTask(ctx context.Context, in sources.TaskInput) (*sources.Task, error) {
	if in.Title == "" {
		return nil, &sources.ValidationError{Field: "title", Reason: "required"}
	}
	return &sources.Task{ID: "task-new", Title: in.Title, Source: sources.ServiceHabitica}, nil
}

func (f *fakeTasks) ScoreTask(ctx context.Context, id string, up bool) error {
	if f.err != nil {
		return f.err
	}
	f.scored = append(f.scored, id)
	return nil
}

type fakeFitness struct {
	activities []sources.Activity
	err        error
}

func (f *fakeFitness) Activities(ctx context.Context, p sources.ActivityParams) ([]sources.Activity, error) {
	return f.activities, f.err
}

func (f *fakeFitness) Activity(ctx context.Context, id int64) (*sources.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sources.Activity{ID: strconv.FormatInt(id, 10), Title: "Morning Run", Source: sources.ServiceStrava}, nil
}

func (f *fakeFitness) Stats(ctx context.Context) (*sources.AthleteStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sources.AthleteStats{}, nil
}

type fakeSearch struct {
	hits []sources.SearchHit
	err  error
}

func (f *fakeSearch) Search(ctx context.Context, p sources.SearchParams) ([]sources.SearchHit, error) {
	return f.hits, f.err
}

type fakeDevice struct {
	mu    sync.Mutex
	calls []sources.TriggerInput
	err   error
}

func (f *fakeDevice) Trigger(ctx context.Context, in sources.TriggerInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, in)
	return nil
}

func (f *fakeDevice) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	srv      *Server
	db       *store.DB
	cache    *cache.Store
	calendar *fakeCalendar
	tasks    *fakeTasks
	fitness  *fakeFitness
	search   *fakeSearch
	device   *fakeDevice
}

func testServer(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		cache:    cache.New(),
		calendar: &fakeCalendar{events: []sources.Event{{ID: "evt1", Title: "Standup"}}},
		tasks:    &fakeTasks{tasks: []sources.Task{{ID: "t1", Title: "Laundry"}}},
		fitness:  &fakeFitness{activities: []sources.Activity{{ID: "101", Title: "Evening Ride"}}},
		search:   &fakeSearch{hits: []sources.SearchHit{{ID: "pg1", Title: "Meal plan"}}},
		device:   &fakeDevice{},
	}
	eng := engine.New(f.cache, f.calendar, f.tasks, f.fitness, nil)

	f.srv = New(Deps{
		DB:       db,
		Cache:    f.cache,
		Guard:    guard.New(5 * time.Second),
		Engine:   eng,
		Calendar: f.calendar,
		Tasks:    f.tasks,
		Fitness:  f.fitness,
		Search:   f.search,
		Device:   f.device,
		APIToken: testToken,
		Version:  "test-version",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestHealthNeedsNoToken(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	f := testServer(t)

	for _, path := range []string{"/api/today", "/api/tasks", "/api/cache/stats"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		f.srv.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, w.Code)
		}
	}
}

func TestWrongTokenRejected(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest("GET", "/api/today", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestEmptyConfiguredTokenRejectsEverything(t *testing.T) {
	f := testServer(t)
	f.srv.apiToken = ""

	req := httptest.NewRequest("GET", "/api/today", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
