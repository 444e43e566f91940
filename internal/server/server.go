package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/larder/internal/engine"
	"github.com/lazypower/larder/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the larder HTTP API over one live engine.
type Server struct {
	eng     *engine.Engine
	db      *store.DB
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server. db may be nil, in which case the run archive
// routes report 503.
func New(eng *engine.Engine, db *store.DB, version string) *Server {
	s := &Server{
		eng:     eng,
		db:      db,
		version: version,
		started: time.Now(),
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

		r.Post("/orders", s.handlePlace)
		r.Post("/orders/{orderID}/pickup", s.handlePickup)
		r.Get("/ledger", s.handleLedger)
		r.Get("/storage", s.handleStorage)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})

	r.Get("/*", boardHandler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"items":   s.eng.Len(),
		"db":      false,
	}
	if s.db != nil {
		body["db"] = s.db.Ping() == nil
		body["db_path"] = s.db.Path
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
