package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
)

const googleCalendarAPI = "https://www.googleapis.com/calendar/v3"

// Calendar fetches events from the Google Calendar API.
type Calendar struct {
	BaseURL    string
	Token      string // OAuth bearer for the calendar scope
	CalendarID string
	HTTPClient *http.Client

	cache *cache.Store
}

// NewCalendar creates a Calendar adapter. calendarID defaults to "primary".
func NewCalendar(token, calendarID string, c *cache.Store) *Calendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{
		BaseURL:    googleCalendarAPI,
		Token:      token,
		CalendarID: calendarID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		cache:      c,
	}
}

type googleEvent struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Location string `json:"location"`
	Start    struct {
		DateTime time.Time `json:"dateTime"`
		Date     string    `json:"date"`
	} `json:"start"`
	End struct {
		DateTime time.Time `json:"dateTime"`
		Date     string    `json:"date"`
	} `json:"end"`
}

// EventsForDate returns normalized events for one day (cached per day).
func (c *Calendar) EventsForDate(ctx context.Context, date string) ([]Event, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	key := cache.CalendarEventsKey(date)
	if v, ok := c.cache.Get(key); ok {
		return v.([]Event), nil
	}

	events, err := c.fetchRange(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, events, cache.TTLCalendarEvents)
	return events, nil
}

// EventsForRange returns events for [from, to), fetching each day
// through the per-day cache so partially warm windows reuse entries.
func (c *Calendar) EventsForRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	var all []Event
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		events, err := c.EventsForDate(ctx, day.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	if all == nil {
		all = []Event{}
	}
	return all, nil
}

// EventInput is the caller-facing shape for creating an event.
type EventInput struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

// CreateEvent writes an event upstream, then invalidates the cached
// day it lands on plus the unified views built from it.
func (c *Calendar) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "required"}
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return nil, &ValidationError{Field: "start/end", Reason: "required"}
	}
	if !in.End.After(in.Start) {
		return nil, &ValidationError{Field: "end", Reason: "must be after start"}
	}

	body, err := json.Marshal(map[string]any{
		"summary":  in.Title,
		"location": in.Location,
		"start":    map[string]string{"dateTime": in.Start.Format(time.RFC3339)},
		"end":      map[string]string{"dateTime": in.End.Format(time.RFC3339)},
	})
	if err != nil {
		return nil, &InternalError{Op: "marshal event", Err: err}
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.BaseURL, url.PathEscape(c.CalendarID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &InternalError{Op: "create event request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	var created googleEvent
	if err := c.do(req, &created); err != nil {
		return nil, err
	}

	c.cache.Delete(cache.CalendarEventsKey(in.Start.Format("2006-01-02")))
	c.cache.DeletePrefix("unified:")

	ev := normalizeGoogleEvent(created)
	return &ev, nil
}

func (c *Calendar) fetchRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	q := url.Values{
		"timeMin":      {from.Format(time.RFC3339)},
		"timeMax":      {to.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.BaseURL, url.PathEscape(c.CalendarID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &InternalError{Op: "calendar request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	var result struct {
		Items []googleEvent `json:"items"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, normalizeGoogleEvent(item))
	}
	return events, nil
}

func (c *Calendar) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return transportErr(ServiceCalendar, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ServiceCalendar, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatusRetry(ServiceCalendar, resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &InternalError{Op: "decode calendar response", Err: err}
	}
	return nil
}

func normalizeGoogleEvent(g googleEvent) Event {
	ev := Event{
		ID:       g.ID,
		Title:    g.Summary,
		Start:    g.Start.DateTime,
		End:      g.End.DateTime,
		Location: g.Location,
		Source:   ServiceCalendar,
	}
	// All-day events carry a bare date instead of a dateTime.
	if g.Start.DateTime.IsZero() && g.Start.Date != "" {
		if day, err := time.Parse("2006-01-02", g.Start.Date); err == nil {
			ev.Start = day
			ev.AllDay = true
		}
	}
	if g.End.DateTime.IsZero() && g.End.Date != "" {
		if day, err := time.Parse("2006-01-02", g.End.Date); err == nil {
			ev.End = day
		}
	}
	return ev
}
