package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"lo/internal/eventsync"
	"lo/internal/logging"
)

type Syncer interface {
	Sync(ctx context.Context, req eventsync.Request) (eventsync.Response, error)
}

type SyncHandler struct {
	Svc Syncer
}

type syncError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SyncEvents is the sync entrypoint. Invalid bodies get 400; everything else
// answers 200 with per-source results, even when some providers failed.
func (h *SyncHandler) SyncEvents(w http.ResponseWriter, r *http.Request) {
	var req eventsync.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, syncError{Error: "bad json"})
		return
	}

	resp, err := h.Svc.Sync(r.Context(), req)
	switch {
	case errors.Is(err, eventsync.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, syncError{Error: err.Error()})
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("sync events")
		writeJSON(w, http.StatusInternalServerError, syncError{Error: "server error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
