package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JGibbsWork/lifestack/internal/engine"
	"github.com/JGibbsWork/lifestack/internal/sources"
)

// writeResult flattens an aggregation result into the response body.
// Partial failure is still a 200; the errors array tells the caller
// which sections are degraded.
func writeResult(w http.ResponseWriter, res *engine.Result) {
	body := make(map[string]any, len(res.Data)+1)
	for k, v := range res.Data {
		body[k] = v
	}
	if res.Partial() {
		body["errors"] = res.Errors
	}
	respond(w, http.StatusOK, body)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.Today(r.Context()))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.Week(r.Context()))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = "all"
	}
	includeCompleted := r.URL.Query().Get("completed") == "true"

	res, err := s.engine.TaskView(r.Context(), filter, includeCompleted)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResult(w, res)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in sources.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	task, err := s.tasks.CreateTask(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, task)
}

func (s *Server) handleScoreTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Direction == "" {
		req.Direction = "up"
	}
	if req.Direction != "up" && req.Direction != "down" {
		http.Error(w, `{"error":"direction must be up or down"}`, http.StatusBadRequest)
		return
	}

	if err := s.tasks.ScoreTask(r.Context(), taskID, req.Direction == "up"); err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{
		"status":    "scored",
		"direction": req.Direction,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	events, err := s.calendar.EventsForDate(r.Context(), date)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"date":   date,
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in sources.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	event, err := s.calendar.CreateEvent(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, event)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := sources.ActivityParams{
		Page:    queryInt(q.Get("page")),
		PerPage: queryInt(q.Get("per_page")),
		After:   int64(queryInt(q.Get("after"))),
		Before:  int64(queryInt(q.Get("before"))),
	}

	activities, err := s.fitness.Activities(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"activities": activities,
		"count":      len(activities),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "activityID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid activity id"}`, http.StatusBadRequest)
		return
	}

	activity, err := s.fitness.Activity(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, activity)
}

func (s *Server) handleFitnessStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.fitness.Stats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, `{"error":"q parameter required"}`, http.StatusBadRequest)
		return
	}

	p := sources.SearchParams{
		Query:    query,
		Filter:   r.URL.Query().Get("filter"),
		PageSize: queryInt(r.URL.Query().Get("page_size")),
	}

	hits, err := s.search.Search(r.Context(), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	respond(w, http.StatusOK, map[string]any{
		"hits":   stats.Hits,
		"misses": stats.Misses,
		"keys":   stats.Keys,
	})
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		s.cache.Flush()
		respond(w, http.StatusOK, map[string]any{"flushed": true})
		return
	}
	deleted := s.cache.DeletePrefix(prefix)
	respond(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"deleted": deleted,
	})
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
