package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JGibbsWork/lifestack/internal/cache"
	"github.com/JGibbsWork/lifestack/internal/engine"
	"github.com/JGibbsWork/lifestack/internal/guard"
	"github.com/JGibbsWork/lifestack/internal/sources"
	"github.com/JGibbsWork/lifestack/internal/store"
)

// CalendarAPI is the slice of the calendar adapter the server calls
// directly. Read paths for the unified views go through the engine.
type CalendarAPI interface {
	EventsForDate(ctx context.Context, date string) ([]sources.Event, error)
	CreateEvent(ctx context.Context, in sources.EventInput) (*sources.Event, error)
}

// TaskAPI covers the task write paths.
type TaskAPI interface {
	CreateTask(ctx context.Context, in sources.TaskInput) (*sources.Task, error)
	ScoreTask(ctx context.Context, id string, up bool) error
}

// FitnessAPI covers the activity read paths.
type FitnessAPI interface {
	Activities(ctx context.Context, p sources.ActivityParams) ([]sources.Activity, error)
	Activity(ctx context.Context, id int64) (*sources.Activity, error)
	Stats(ctx context.Context) (*sources.AthleteStats, error)
}

// SearchAPI covers workspace search.
type SearchAPI interface {
	Search(ctx context.Context, p sources.SearchParams) ([]sources.SearchHit, error)
}

// DeviceAPI sends a validated actuation to the stimulus device.
type DeviceAPI interface {
	Trigger(ctx context.Context, in sources.TriggerInput) error
}

// Deps carries everything the server needs.
type Deps struct {
	DB       *store.DB
	Cache    *cache.Store
	Guard    *guard.Guard
	Engine   *engine.Engine
	Calendar CalendarAPI
	Tasks    TaskAPI
	Fitness  FitnessAPI
	Search   SearchAPI
	Device   DeviceAPI
	APIToken string
	Version  string
}

// Server is the lifestack HTTP API server.
type Server struct {
	db       *store.DB
	cache    *cache.Store
	guard    *guard.Guard
	engine   *engine.Engine
	calendar CalendarAPI
	tasks    TaskAPI
	fitness  FitnessAPI
	search   SearchAPI
	device   DeviceAPI
	apiToken string
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a Server wired to the given collaborators.
func New(d Deps) *Server {
	s := &Server{
		db:       d.DB,
		cache:    d.Cache,
		guard:    d.Guard,
		engine:   d.Engine,
		calendar: d.Calendar,
		tasks:    d.Tasks,
		fitness:  d.Fitness,
		search:   d.Search,
		device:   d.Device,
		apiToken: d.APIToken,
		version:  d.Version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/today", s.handleToday)
			r.Get("/week", s.handleWeek)

			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleCreateTask)
			r.Post("/tasks/{taskID}/score", s.handleScoreTask)

			r.Get("/calendar/events", s.handleListEvents)
			r.Post("/calendar/events", s.handleCreateEvent)

			r.Get("/fitness/activities", s.handleActivities)
			r.Get("/fitness/activities/{activityID}", s.handleActivity)
			r.Get("/fitness/stats", s.handleFitnessStats)

			r.Get("/search", s.handleSearch)

			r.Post("/device/trigger", s.handleDeviceTrigger)
			r.Get("/device/history", s.handleDeviceHistory)

			r.Get("/cache/stats", s.handleCacheStats)
			r.Delete("/cache", s.handleCacheDelete)

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", s.handleListMemories)
				r.Post("/", s.handleCreateMemory)
				r.Get("/{memoryID}", s.handleGetMemory)
				r.Put("/{memoryID}", s.handleUpdateMemory)
				r.Delete("/{memoryID}", s.handleDeleteMemory)
			})
		})
	})

	s.router = r
}

// requireToken enforces the static bearer token on everything except
// /api/health. An unconfigured token rejects all requests rather than
// silently opening the API.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.apiToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.started).Seconds(),
		"db":         dbOK,
		"cache_keys": s.cache.Stats().Keys,
	})
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
