package handler

import (
	"errors"
	"net/http"

	"bg-stats-tracker/internal/model"
	"bg-stats-tracker/internal/pkg/lock"
	"bg-stats-tracker/internal/repository"
	"bg-stats-tracker/internal/service"
)

func (h *Handlers) runImport(w http.ResponseWriter, r *http.Request) {
	var imported int
	err := h.RunLock.WithLock(func() error {
		var runErr error
		imported, runErr = h.Importer.Run(r.Context())
		return runErr
	})
	switch {
	case errors.Is(err, lock.ErrRunInProgress):
		respondError(w, http.StatusConflict, "an import run is already in progress")
		return
	case errors.Is(err, service.ErrSourceUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"imported": imported})
}

func (h *Handlers) runReanalysis(w http.ResponseWriter, r *http.Request) {
	var fixed int
	err := h.RunLock.WithLock(func() error {
		var runErr error
		fixed, runErr = h.Importer.Reanalyze(r.Context())
		return runErr
	})
	switch {
	case errors.Is(err, lock.ErrRunInProgress):
		respondError(w, http.StatusConflict, "an import run is already in progress")
		return
	case errors.Is(err, service.ErrSourceUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"fixed": fixed})
}

func (h *Handlers) importStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Sync.Status(r.Context())
	if errors.Is(err, repository.ErrNoSyncStatus) {
		respondJSON(w, http.StatusOK, map[string]any{"last_import_time": nil, "last_status": ""})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"last_import_time": status.LastImportTime,
		"last_status":      status.LastStatus,
	})
}

func (h *Handlers) importLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Sync.RecentImports(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*model.ImportLogEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
