package handler

import (
	"net/http"
	"strconv"
	"time"

	"bg-stats-tracker/internal/model"
	"bg-stats-tracker/internal/repository"
)

func (h *Handlers) listMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.MatchFilter{
		Hero:   q.Get("hero"),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	if v := q.Get("max_placement"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "max_placement must be an integer")
			return
		}
		filter.MaxPlacement = &p
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		filter.From = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}

	matches, err := h.Matches.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []*model.Match{}
	}
	respondJSON(w, http.StatusOK, matches)
}
