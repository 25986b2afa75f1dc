// Package api exposes the HTTP surface of the extraction service: job
// submission, the websocket progress channel, the polling task facade,
// and result retrieval.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/session"
	"github.com/sells-group/extraction-service/internal/ws"
)

// Runner launches the extraction pipeline for a created session.
type Runner interface {
	Start(ctx context.Context, sessionID string)
}

// Config carries the handler tunables.
type Config struct {
	// PreviewLimit caps rows returned by the preview endpoint. Default 5.
	PreviewLimit int
	// PollInterval paces the task SSE stream. Default 1s.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Server wires HTTP handlers to the session store and pipeline runner.
type Server struct {
	router chi.Router
	store  *session.Store
	mgr    *ws.Manager
	runner Runner
	cfg    Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store *session.Store, mgr *ws.Manager, runner Runner, cfg Config) *Server {
	s := &Server{
		store:  store,
		mgr:    mgr,
		runner: runner,
		cfg:    cfg.withDefaults(),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/", s.index)
	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extraction/start", s.startExtraction)
		r.Get("/ws/extraction/{session_id}", s.progressSocket)
		r.Route("/extraction/{session_id}", func(r chi.Router) {
			r.Get("/status", s.extractionStatus)
			r.Get("/preview", s.extractionPreview)
			r.Get("/download", s.extractionDownload)
			r.Delete("/", s.deleteExtraction)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.createTask)
			r.Route("/{task_id}", func(r chi.Router) {
				r.Get("/status", s.taskStatus)
				r.Get("/stream", s.taskStream)
				r.Get("/result", s.taskResult)
				r.Delete("/", s.deleteTask)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "extraction-service",
		"status":  "running",
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"active_sessions":    s.store.Len(),
		"active_connections": s.mgr.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
