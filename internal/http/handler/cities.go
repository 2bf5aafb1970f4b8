package handler

import (
	"errors"
	"net/http"

	"lo/internal/geo"
)

type CitiesHandler struct {
	Cities      *geo.Registry
	EventRadius float64
}

func (h *CitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cities": h.Cities.Cities()})
}

type nearestDTO struct {
	City          *geo.City `json:"city"`
	DistanceMiles *float64  `json:"distance_miles"`
	RadiusMiles   float64   `json:"radius_miles"`
}

// Nearest resolves lat/lng to a city within radius (default: the event
// radius). city is null when the point is outside it.
func (h *CitiesHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	center, radius, err := centerQuery(r, h.EventRadius)
	if err == nil && center == nil {
		err = errors.New("lat and lng are required")
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := nearestDTO{RadiusMiles: radius}
	if m, found := h.Cities.Detect(*center, radius); found {
		c, d := m.City, m.DistanceMiles
		out.City, out.DistanceMiles = &c, &d
	}
	writeJSON(w, http.StatusOK, out)
}
