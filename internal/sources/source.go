// Package sources wraps each upstream API behind a cache-first fetch
// that returns normalized, source-tagged records. Every record type
// carries the same field contract (id, title, timestamps, source tag)
// so the aggregation engine never branches on origin.
package sources

import "time"

// Service names used in source tags, cache keys, and error reports.
const (
	ServiceCalendar = "calendar"
	ServiceHabitica = "habitica"
	ServiceStrava   = "strava"
	ServiceNotion   = "notion"
	ServicePiShock  = "pishock"
)

// Event is a normalized calendar event.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day,omitempty"`
	Location string    `json:"location,omitempty"`
	Source   string    `json:"source"`
}

// Task is a normalized task from any task backend.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Type      string     `json:"type"` // "todo" or "daily"
	Completed bool       `json:"completed"`
	Due       *time.Time `json:"due,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Source    string     `json:"source"`
}

// Activity is a normalized fitness activity.
type Activity struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sport     string    `json:"sport"`
	StartedAt time.Time `json:"started_at"`
	Duration  int       `json:"duration_seconds"`
	Distance  float64   `json:"distance_meters"`
	Elevation float64   `json:"elevation_meters,omitempty"`
	Source    string    `json:"source"`
}

// SearchHit is a normalized workspace search result.
type SearchHit struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind"` // "page" or "database"
	URL        string    `json:"url,omitempty"`
	LastEdited time.Time `json:"last_edited"`
	Source     string    `json:"source"`
}
