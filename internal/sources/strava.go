package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/JGibbsWork/lifestack/internal/auth"
	"github.com/JGibbsWork/lifestack/internal/cache"
)

const stravaAPI = "https://www.strava.com/api/v3"

// TokenSource supplies a currently-valid access token. Implemented by
// auth.Manager; a static func suffices in tests.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Strava fetches activities and athlete stats from the Strava API,
// authenticating through the credential lifecycle manager.
type Strava struct {
	BaseURL    string
	Tokens     TokenSource
	AthleteID  int64
	HTTPClient *http.Client

	cache *cache.Store
}

// NewStrava creates a Strava adapter.
func NewStrava(tokens TokenSource, athleteID int64, c *cache.Store) *Strava {
	return &Strava{
		BaseURL:    stravaAPI,
		Tokens:     tokens,
		AthleteID:  athleteID,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		cache:      c,
	}
}

type stravaActivity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	SportType      string    `json:"sport_type"`
	StartDate      time.Time `json:"start_date"`
	MovingTime     int       `json:"moving_time"`
	Distance       float64   `json:"distance"`
	TotalElevation float64   `json:"total_elevation_gain"`
}

// ActivityParams selects a page of activities.
type ActivityParams struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	// After/Before are unix seconds; zero means unbounded.
	After  int64 `json:"after,omitempty"`
	Before int64 `json:"before,omitempty"`
}

func (p ActivityParams) normalize() ActivityParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = 30
	}
	return p
}

// Activities returns a normalized page of recent activities.
func (s *Strava) Activities(ctx context.Context, p ActivityParams) ([]Activity, error) {
	p = p.normalize()

	key := cache.StravaActivitiesKey(p)
	if v, ok := s.cache.Get(key); ok {
		return v.([]Activity), nil
	}

	q := url.Values{
		"page":     {strconv.Itoa(p.Page)},
		"per_page": {strconv.Itoa(p.PerPage)},
	}
	if p.After > 0 {
		q.Set("after", strconv.FormatInt(p.After, 10))
	}
	if p.Before > 0 {
		q.Set("before", strconv.FormatInt(p.Before, 10))
	}

	var raw []stravaActivity
	if err := s.get(ctx, "/athlete/activities?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	activities := make([]Activity, 0, len(raw))
	for _, a := range raw {
		activities = append(activities, normalizeStravaActivity(a))
	}
	s.cache.Set(key, activities, cache.TTLStravaList)
	return activities, nil
}

// Activity returns one activity by id.
func (s *Strava) Activity(ctx context.Context, id int64) (*Activity, error) {
	if id <= 0 {
		return nil, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}

	key := cache.StravaActivityKey(id)
	if v, ok := s.cache.Get(key); ok {
		act := v.(Activity)
		return &act, nil
	}

	var raw stravaActivity
	if err := s.get(ctx, fmt.Sprintf("/activities/%d", id), &raw); err != nil {
		return nil, err
	}

	act := normalizeStravaActivity(raw)
	s.cache.Set(key, act, cache.TTLStravaDetail)
	return &act, nil
}

// AthleteStats holds lifetime/recent totals as Strava reports them.
type AthleteStats struct {
	RecentRideTotals ActivityTotals `json:"recent_ride_totals"`
	RecentRunTotals  ActivityTotals `json:"recent_run_totals"`
	AllRideTotals    ActivityTotals `json:"all_ride_totals"`
	AllRunTotals     ActivityTotals `json:"all_run_totals"`
}

// ActivityTotals is one rollup bucket in athlete stats.
type ActivityTotals struct {
	Count    int     `json:"count"`
	Distance float64 `json:"distance"`
	Duration int     `json:"moving_time"`
}

// Stats returns the athlete's aggregate stats.
func (s *Strava) Stats(ctx context.Context) (*AthleteStats, error) {
	key := cache.StravaStatsKey(s.AthleteID)
	if v, ok := s.cache.Get(key); ok {
		stats := v.(AthleteStats)
		return &stats, nil
	}

	var stats AthleteStats
	if err := s.get(ctx, fmt.Sprintf("/athletes/%d/stats", s.AthleteID), &stats); err != nil {
		return nil, err
	}

	s.cache.Set(key, stats, cache.TTLStravaDetail)
	return &stats, nil
}

func (s *Strava) get(ctx context.Context, path string, out any) error {
	token, err := s.Tokens.AccessToken(ctx)
	if err != nil {
		// Only a definitive credential failure is an auth error; a
		// refresh that merely timed out is retryable.
		if errors.Is(err, auth.ErrReauthorizationRequired) || errors.Is(err, auth.ErrNoToken) {
			return &AuthError{Service: ServiceStrava, Reason: err.Error()}
		}
		return &TransientError{Service: ServiceStrava, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+path, nil)
	if err != nil {
		return &InternalError{Op: "strava request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return transportErr(ServiceStrava, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ServiceStrava, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatusRetry(ServiceStrava, resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &InternalError{Op: "decode strava response", Err: err}
	}
	return nil
}

func normalizeStravaActivity(a stravaActivity) Activity {
	return Activity{
		ID:        strconv.FormatInt(a.ID, 10),
		Title:     a.Name,
		Sport:     a.SportType,
		StartedAt: a.StartDate,
		Duration:  a.MovingTime,
		Distance:  a.Distance,
		Elevation: a.TotalElevation,
		Source:    ServiceStrava,
	}
}
