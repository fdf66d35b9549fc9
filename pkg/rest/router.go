// Package rest is the stateless HTTP facade over the note service. Every
// successful mutation is also pushed to realtime sessions so connected
// viewers stay in sync whatever the origin of the write. The HTTP response is
// the REST caller's acknowledgement.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/introspection"
	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

// Config wires the router.
type Config struct {
	Service *core.Service
	Hub     *realtime.Hub
	// Websocket is mounted at /ws when set.
	Websocket http.Handler
	// Components are reported by /api/admin/system.
	Components []introspection.Component
	Logger     *slog.Logger
	Version    string
	// AllowedOrigins defaults to any origin; there is no authentication to protect.
	AllowedOrigins []string
	// Now overrides the clock used for date windows.
	Now func() time.Time
}

type api struct {
	service    *core.Service
	hub        *realtime.Hub
	components []introspection.Component
	logger     *slog.Logger
	version    string
	now        func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	a := &api{
		service:    cfg.Service,
		hub:        cfg.Hub,
		components: cfg.Components,
		logger:     cfg.Logger,
		version:    cfg.Version,
		now:        cfg.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", a.listNotes)
		r.Post("/", a.createNote)
		r.Get("/stats", a.noteStats)
		r.Get("/{id}", a.getNote)
		r.Put("/{id}", a.updateNote)
		r.Delete("/{id}", a.deleteNote)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/stats", a.adminStats)
		r.Get("/clients", a.adminClients)
		r.Get("/logs", a.adminLogs)
		r.Delete("/logs", a.clearLogs)
		r.Get("/activity", a.adminActivity)
		r.Get("/system", a.adminSystem)
	})

	if cfg.Websocket != nil {
		r.Handle("/ws", cfg.Websocket)
	}

	return r
}

// accessLog logs one line per request with status and duration.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Debug("handled",
				"method", r.Method,
				"url", r.URL.String(),
				"status", m.Code,
				"duration", m.Duration,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
