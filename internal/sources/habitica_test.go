package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
)

func TestHabiticaTasks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-user"); got != "user-1" {
			t.Errorf("x-api-user = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "key-1" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.URL.Query().Get("type"); got != "todos" {
			t.Errorf("type = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "t1", "text": "Buy milk", "type": "todo", "completed": false, "date": "2025-06-02T00:00:00Z"},
				{"id": "t2", "text": "Ship release", "type": "todo", "completed": true},
			},
		})
	}))
	defer ts.Close()

	h := NewHabitica("user-1", "key-1", cache.New())
	h.BaseURL = ts.URL

	tasks, err := h.Tasks(context.Background(), "todos")
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Title != "Buy milk" || tasks[0].Source != ServiceHabitica {
		t.Errorf("task[0] = %+v", tasks[0])
	}
	if tasks[0].Due == nil {
		t.Error("due date dropped in normalization")
	}
	if !tasks[1].Completed {
		t.Error("completed flag dropped")
	}
}

func TestHabiticaTasksBadType(t *testing.T) {
	h := NewHabitica("u", "k", cache.New())
	if _, err := h.Tasks(context.Background(), "habits"); !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestHabiticaCreateTaskInvalidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "new-1", "text": in["text"], "type": in["type"]},
		})
	}))
	defer ts.Close()

	store := cache.New()
	store.Set(cache.UnifiedTasksKey("todos", false), "stale", time.Minute)
	store.Set(cache.UnifiedTodayKey(), "stale", time.Minute)
	store.Set(cache.UnifiedWeekKey(), "keep", time.Minute)

	h := NewHabitica("u", "k", store)
	h.BaseURL = ts.URL

	task, err := h.CreateTask(context.Background(), TaskInput{Title: "Water plants"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != "new-1" || task.Type != "todo" {
		t.Errorf("task = %+v", task)
	}

	if _, ok := store.Get(cache.UnifiedTasksKey("todos", false)); ok {
		t.Error("tasks view not invalidated")
	}
	if _, ok := store.Get(cache.UnifiedTodayKey()); ok {
		t.Error("today view not invalidated")
	}
	if _, ok := store.Get(cache.UnifiedWeekKey()); !ok {
		t.Error("week view should not be invalidated by a task write")
	}
}

func TestHabiticaScoreTask(t *testing.T) {
	var scoredPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoredPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer ts.Close()

	h := NewHabitica("u", "k", cache.New())
	h.BaseURL = ts.URL

	if err := h.ScoreTask(context.Background(), "t1", true); err != nil {
		t.Fatalf("ScoreTask: %v", err)
	}
	if scoredPath != "/tasks/t1/score/up" {
		t.Errorf("path = %s", scoredPath)
	}

	if err := h.ScoreTask(context.Background(), "", true); !IsValidation(err) {
		t.Errorf("empty id err = %v, want ValidationError", err)
	}
}
