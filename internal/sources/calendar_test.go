package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
)

func calendarFixture(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer cal-token" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.Method {
		case "GET":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id":      "ev1",
						"summary": "Standup",
						"start":   map[string]string{"dateTime": "2025-06-01T09:00:00Z"},
						"end":     map[string]string{"dateTime": "2025-06-01T09:15:00Z"},
					},
					{
						"id":      "ev2",
						"summary": "Launch day",
						"start":   map[string]string{"date": "2025-06-01"},
						"end":     map[string]string{"date": "2025-06-02"},
					},
				},
			})
		case "POST":
			var in map[string]any
			json.NewDecoder(r.Body).Decode(&in)
			json.NewEncoder(w).Encode(map[string]any{
				"id":      "created-1",
				"summary": in["summary"],
				"start":   in["start"],
				"end":     in["end"],
			})
		}
	}))
}

func TestCalendarEventsForDate(t *testing.T) {
	var hits atomic.Int32
	ts := calendarFixture(t, &hits)
	defer ts.Close()

	store := cache.New()
	cal := NewCalendar("cal-token", "primary", store)
	cal.BaseURL = ts.URL

	events, err := cal.EventsForDate(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("EventsForDate: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Title != "Standup" || events[0].Source != ServiceCalendar {
		t.Errorf("event[0] = %+v", events[0])
	}
	if !events[1].AllDay {
		t.Error("date-only event not marked all-day")
	}

	// Second read is served from cache.
	if _, err := cal.EventsForDate(context.Background(), "2025-06-01"); err != nil {
		t.Fatalf("cached EventsForDate: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream fetches = %d, want 1", n)
	}
}

func TestCalendarBadDate(t *testing.T) {
	cal := NewCalendar("cal-token", "", cache.New())

	_, err := cal.EventsForDate(context.Background(), "June 1st")
	if !IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestCalendarCreateInvalidates(t *testing.T) {
	var hits atomic.Int32
	ts := calendarFixture(t, &hits)
	defer ts.Close()

	store := cache.New()
	cal := NewCalendar("cal-token", "primary", store)
	cal.BaseURL = ts.URL

	// Warm the day cache and a unified view.
	if _, err := cal.EventsForDate(context.Background(), "2025-06-01"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	store.Set(cache.UnifiedTodayKey(), "stale", time.Minute)

	_, err := cal.CreateEvent(context.Background(), EventInput{
		Title: "Dentist",
		Start: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if _, ok := store.Get(cache.CalendarEventsKey("2025-06-01")); ok {
		t.Error("day cache not invalidated by write")
	}
	if _, ok := store.Get(cache.UnifiedTodayKey()); ok {
		t.Error("unified view not invalidated by write")
	}
}

func TestCalendarCreateValidation(t *testing.T) {
	cal := NewCalendar("cal-token", "", cache.New())

	cases := []EventInput{
		{Start: time.Now(), End: time.Now().Add(time.Hour)}, // no title
		{Title: "x"}, // no times
		{Title: "x", Start: time.Now(), End: time.Now().Add(-time.Hour)}, // end before start
	}
	for i, in := range cases {
		if _, err := cal.CreateEvent(context.Background(), in); !IsValidation(err) {
			t.Errorf("case %d: err = %v, want ValidationError", i, err)
		}
	}
}

func TestCalendarAuthFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401}}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	cal := NewCalendar("expired", "", cache.New())
	cal.BaseURL = ts.URL

	_, err := cal.EventsForDate(context.Background(), "2025-06-01")
	if !IsAuth(err) {
		t.Errorf("err = %v, want AuthError", err)
	}
	if !strings.Contains(err.Error(), "re-authorization") {
		t.Errorf("error text should direct to re-authorization: %v", err)
	}
}
