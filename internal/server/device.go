package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/JGibbsWork/lifestack/internal/sources"
	"github.com/JGibbsWork/lifestack/internal/store"
)

// handleDeviceTrigger runs the actuation pipeline: validate the request,
// consult the cooldown guard, send to the device, then log the attempt.
// Validation failures never touch the guard, so a rejected request does
// not push the cooldown window.
func (s *Server) handleDeviceTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      string `json:"mode"`
		Intensity int    `json:"intensity"`
		Duration  int    `json:"duration"`
		Confirm   bool   `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	op, err := sources.ParseOp(req.Mode)
	if err != nil {
		writeErr(w, err)
		return
	}
	in := sources.TriggerInput{Op: op, Intensity: req.Intensity, Duration: req.Duration}
	if err := in.Validate(); err != nil {
		writeErr(w, err)
		return
	}
	if op == sources.OpShock && !req.Confirm {
		writeErr(w, &sources.ValidationError{Field: "confirm", Reason: "must be true for shock"})
		return
	}

	class := op.ActionClass()
	if d := s.guard.Check(class); !d.Allowed {
		s.logTrigger(store.TriggerRecord{
			Action:    class,
			Intensity: req.Intensity,
			Duration:  req.Duration,
			Allowed:   false,
			Outcome:   store.OutcomeBlocked,
		})
		respond(w, http.StatusTooManyRequests, map[string]any{
			"allowed":          false,
			"secondsRemaining": d.SecondsRemaining(),
		})
		return
	}

	s.guard.Trigger(class)
	sendErr := s.device.Trigger(r.Context(), in)

	rec := store.TriggerRecord{
		Action:    class,
		Intensity: req.Intensity,
		Duration:  req.Duration,
		Allowed:   true,
		Outcome:   store.OutcomeSent,
	}
	if sendErr != nil {
		rec.Outcome = store.OutcomeFailed
		rec.Detail = sendErr.Error()
	}
	s.logTrigger(rec)

	if sendErr != nil {
		writeErr(w, sendErr)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"allowed":   true,
		"status":    "sent",
		"mode":      req.Mode,
		"intensity": req.Intensity,
		"duration":  req.Duration,
	})
}

// logTrigger appends to the actuation log. A failed write must not
// change the response already decided for the caller.
func (s *Server) logTrigger(rec store.TriggerRecord) {
	if err := s.db.AppendTrigger(rec); err != nil {
		log.Printf("trigger history write failed: %v", err)
	}
}

func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"))

	records, err := s.db.RecentTriggers(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"history": records,
		"count":   len(records),
	})
}
