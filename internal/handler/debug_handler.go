package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/logger"
	"github.com/mrblmoore/hannibal-ai/internal/loop"
	"github.com/mrblmoore/hannibal-ai/internal/repository"
)

// StatusSource reports decision loop status.
type StatusSource interface {
	Status() loop.Status
}

// CommanderStore is the in-memory commander state the debug API reads.
type CommanderStore interface {
	Records() []battle.CommanderRecord
	Record(id string) (battle.CommanderRecord, bool)
	Forget(id string) bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// DebugHandler serves loop status and commander memory.
type DebugHandler struct {
	loop  StatusSource
	store CommanderStore
	repo  repository.CommanderRepository
}

// NewDebugHandler creates a DebugHandler. repo may be nil when persistence
// is disabled.
func NewDebugHandler(l StatusSource, store CommanderStore, repo repository.CommanderRepository) *DebugHandler {
	return &DebugHandler{loop: l, store: store, repo: repo}
}

// Health handles GET /healthz.
func (h *DebugHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "loop": h.loop.Status().State}
	if p, ok := h.repo.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["redis"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["redis"] = "ok"
	}
	writeJSON(w, http.StatusOK, body)
}

// LoopStatus handles GET /loop.
func (h *DebugHandler) LoopStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loop.Status())
}

// ListCommanders handles GET /commanders.
func (h *DebugHandler) ListCommanders(w http.ResponseWriter, r *http.Request) {
	recs := h.store.Records()
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	writeJSON(w, http.StatusOK, recs)
}

// GetCommander handles GET /commanders/{id}. Commanders evicted from memory
// are looked up in the repository.
func (h *DebugHandler) GetCommander(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if rec, ok := h.store.Record(id); ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	if h.repo != nil {
		rec, err := h.repo.LoadCommander(r.Context(), id)
		if err != nil {
			lg := logger.ForRequest(r.Context())
			lg.Error().Err(err).Str("commander", id).Msg("Failed to load commander")
			writeError(w, http.StatusInternalServerError, "failed to load commander")
			return
		}
		if rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "commander not found")
}

// DeleteCommander handles DELETE /commanders/{id}: the commander starts
// fresh at its next encounter.
func (h *DebugHandler) DeleteCommander(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	held := h.store.Forget(id)
	if h.repo != nil {
		if err := h.repo.DeleteCommander(r.Context(), id); err != nil {
			lg := logger.ForRequest(r.Context())
			lg.Error().Err(err).Str("commander", id).Msg("Failed to delete commander")
			writeError(w, http.StatusInternalServerError, "failed to delete commander")
			return
		}
	} else if !held {
		writeError(w, http.StatusNotFound, "commander not found")
		return
	}
	log.Info().Str("commander", id).Bool("held", held).Msg("Commander memory reset")
	w.WriteHeader(http.StatusNoContent)
}
