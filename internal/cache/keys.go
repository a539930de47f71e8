package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// TTLs per cache namespace. Aggregate views stay short so a stale
// dashboard corrects itself within minutes; slow-moving upstream data
// (athlete stats, database schemas) can sit for longer.
const (
	TTLCalendarEvents = 15 * time.Minute
	TTLStravaList     = 15 * time.Minute
	TTLStravaDetail   = time.Hour
	TTLNotionSearch   = 5 * time.Minute
	TTLNotionDatabase = 30 * time.Minute
	TTLNotionPage     = 10 * time.Minute
	TTLUnified        = 5 * time.Minute
)

// Key builders. Every cache key is a deterministic function of its
// namespace and request parameters, so two requests with the same
// shape always land on the same entry.

func CalendarEventsKey(date string) string {
	return "calendar:events:" + date
}

func StravaActivitiesKey(params any) string {
	return "strava:activities:" + paramHash(params)
}

func StravaActivityKey(id int64) string {
	return fmt.Sprintf("strava:activity:%d", id)
}

func StravaStatsKey(athleteID int64) string {
	return fmt.Sprintf("strava:stats:%d", athleteID)
}

func NotionSearchKey(params any) string {
	return "notion:search:" + paramHash(params)
}

func NotionDatabaseKey(id string) string {
	return "notion:database:" + id
}

func NotionPageKey(id string) string {
	return "notion:page:" + id
}

func UnifiedTodayKey() string {
	return "unified:today"
}

func UnifiedWeekKey() string {
	return "unified:week"
}

func UnifiedTasksKey(filter string, completed bool) string {
	return fmt.Sprintf("unified:tasks:%s:%t", filter, completed)
}

// paramHash produces a short stable digest of arbitrary request
// parameters. Map keys are sorted by encoding/json, so structurally
// equal params hash equal.
func paramHash(params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable params (channels, funcs) indicate a programming
		// error; fall back to a constant rather than panic in a cache key.
		b = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
