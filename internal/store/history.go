package store

import (
	"fmt"
	"time"
)

// Trigger outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeBlocked = "blocked"
)

// TriggerRecord is one row of the append-only device actuation log.
type TriggerRecord struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Intensity int    `json:"intensity"`
	Duration  int    `json:"duration"`
	Allowed   bool   `json:"allowed"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// AppendTrigger records an actuation attempt. The log is written after
// the device call, whatever its outcome; there is no update or delete.
func (db *DB) AppendTrigger(rec TriggerRecord) error {
	_, err := db.Exec(`
		INSERT INTO trigger_history (action, intensity, duration, allowed, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Action, rec.Intensity, rec.Duration, boolToInt(rec.Allowed), rec.Outcome, rec.Detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append trigger: %w", err)
	}
	return nil
}

// RecentTriggers returns the latest log rows, newest first.
func (db *DB) RecentTriggers(limit int) ([]TriggerRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, action, intensity, duration, allowed, outcome, COALESCE(detail, ''), created_at
		FROM trigger_history ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent triggers: %w", err)
	}
	defer rows.Close()

	var records []TriggerRecord
	for rows.Next() {
		var rec TriggerRecord
		var allowed int
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Intensity, &rec.Duration, &allowed, &rec.Outcome, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		rec.Allowed = allowed != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
