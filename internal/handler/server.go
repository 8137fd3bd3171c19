// Package handler exposes the tracker's query and import operations over
// HTTP. Handlers are thin: they translate requests to core calls and core
// results to JSON, with no business logic of their own.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"bg-stats-tracker/internal/pkg/db"
	"bg-stats-tracker/internal/pkg/lock"
	"bg-stats-tracker/internal/repository"
	"bg-stats-tracker/internal/service"
)

// Handlers bundles the dependencies of the HTTP surface.
type Handlers struct {
	Stats    *service.StatsService
	Importer *service.Importer
	Matches  *repository.MatchRepository
	Sync     *repository.SyncRepository
	RunLock  *lock.RunLock
	DB       *db.Pool
}

// Router builds the API router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogging)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/matches", h.listMatches).Methods(http.MethodGet)

	api.HandleFunc("/stats/summary", h.summary).Methods(http.MethodGet)
	api.HandleFunc("/stats/global", h.globalStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/heroes", h.heroStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/compositions", h.compositions).Methods(http.MethodGet)
	api.HandleFunc("/stats/compositions/{type}", h.composition).Methods(http.MethodGet)
	api.HandleFunc("/stats/streaks", h.streaks).Methods(http.MethodGet)
	api.HandleFunc("/stats/timeline", h.timeline).Methods(http.MethodGet)
	api.HandleFunc("/stats/elo", h.elo).Methods(http.MethodGet)
	api.HandleFunc("/stats/placements", h.placements).Methods(http.MethodGet)
	api.HandleFunc("/stats/duration", h.durations).Methods(http.MethodGet)

	api.HandleFunc("/import/run", h.runImport).Methods(http.MethodPost)
	api.HandleFunc("/import/reanalyze", h.runReanalysis).Methods(http.MethodPost)
	api.HandleFunc("/import/status", h.importStatus).Methods(http.MethodGet)
	api.HandleFunc("/import/log", h.importLog).Methods(http.MethodGet)

	return r
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.HealthCheck(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
