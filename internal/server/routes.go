package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/larder/internal/engine"
	"github.com/lazypower/larder/internal/feed"
	"github.com/lazypower/larder/internal/store"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// handlePlace accepts one order record, with the same field aliases as
// order files, and places it.
func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields); err != nil || fields == nil {
		writeError(w, http.StatusBadRequest, "invalid json: expected an order object")
		return
	}

	item, err := feed.DecodeRecord(fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actions, err := s.eng.Place(item)
	switch {
	case errors.Is(err, engine.ErrDuplicateItem):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, engine.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("server: place %s: %v", item.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, a := range actions {
		log.Printf("server: %s", a)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"actions": engine.Export(actions)})
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")

	a, ok := s.eng.Pickup(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "noop"})
		return
	}

	log.Printf("server: %s", a)
	writeJSON(w, http.StatusOK, map[string]any{"action": engine.Export([]engine.Action{a})[0]})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": engine.Export(s.eng.Ledger())})
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}
	runID := chi.URLParam(r, "runID")

	run, err := s.db.GetRun(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found: "+runID)
		return
	}

	actions, err := s.db.RunActions(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"actions": engine.Export(actions),
	})
}
