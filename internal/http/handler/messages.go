package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"lo/internal/auth"
	"lo/internal/geo"
	"lo/internal/logging"
	"lo/internal/message"
)

type MessageStore interface {
	Active(ctx context.Context, f message.Filter) ([]message.Message, error)
	CreateUserMessage(ctx context.Context, userID string, in message.CreateInput) (message.Message, error)
	DeleteUserMessage(ctx context.Context, userID string, id uuid.UUID) error
}

type Notifier interface {
	NotifyMessagesChanged(created int, sources []string)
}

type MessageHandler struct {
	Store       MessageStore
	Cities      *geo.Registry
	EventRadius float64
	Notifier    Notifier
}

type activeDTO struct {
	City     *geo.City         `json:"city"`
	Messages []message.Message `json:"messages"`
}

// Active lists unexpired messages. With type=event and a map center the city
// gate applies: outside every event radius the list is empty and city is null.
func (h *MessageHandler) Active(w http.ResponseWriter, r *http.Request) {
	center, radius, err := centerQuery(r, h.EventRadius)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	f := message.Filter{Center: center, RadiusMiles: radius, Tag: q.Get("tag")}
	if raw := q.Get("type"); raw != "" {
		if f.Type, err = message.ParseType(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		f.ViewerID = u.ID
	}

	out := activeDTO{Messages: []message.Message{}}
	if center != nil {
		if m, ok := h.Cities.Detect(*center, h.EventRadius); ok {
			c := m.City
			out.City = &c
		} else if f.Type == message.TypeEvent {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	rows, err := h.Store.Active(r.Context(), f)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list active messages")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if rows != nil {
		out.Messages = rows
	}
	writeJSON(w, http.StatusOK, out)
}

type createMessageReq struct {
	Content  string  `json:"content"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	IsPublic *bool   `json:"is_public"`
	TTLHours int     `json:"ttl_hours"`
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	var req createMessageReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	in := message.CreateInput{
		Content:  req.Content,
		Lat:      req.Lat,
		Lng:      req.Lng,
		IsPublic: req.IsPublic == nil || *req.IsPublic,
		TTL:      time.Duration(req.TTLHours) * time.Hour,
	}

	m, err := h.Store.CreateUserMessage(r.Context(), u.ID, in)
	switch {
	case errors.Is(err, message.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("create message")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if h.Notifier != nil {
		h.Notifier.NotifyMessagesChanged(1, nil)
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	err = h.Store.DeleteUserMessage(r.Context(), u.ID, id)
	switch {
	case errors.Is(err, message.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, message.ErrNotDeletable):
		http.Error(w, "event messages cannot be deleted", http.StatusForbidden)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("delete message")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if h.Notifier != nil {
		h.Notifier.NotifyMessagesChanged(0, nil)
	}
	w.WriteHeader(http.StatusNoContent)
}
