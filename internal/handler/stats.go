package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"bg-stats-tracker/internal/model"
)

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	out, err := h.Stats.Summary(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) globalStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Global(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) heroStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Heroes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []*model.HeroStats{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) compositions(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Compositions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []*model.CompositionStats{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) composition(w http.ResponseWriter, r *http.Request) {
	minionTypes := mux.Vars(r)["type"]
	out, err := h.Stats.Composition(r.Context(), minionTypes)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		respondError(w, http.StatusNotFound, "no matches for composition "+minionTypes)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) streaks(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Streaks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) timeline(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Timeline(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) elo(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Elo(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) placements(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Placements(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []*model.PlacementBucket{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) durations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.Durations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
