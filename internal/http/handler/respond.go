package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"lo/internal/geo"
)

const maxRadiusMiles = 500

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%s must be a finite number", key)
	}
	return f, true, nil
}

// centerQuery reads lat, lng and radius from the query string. center is nil
// when neither lat nor lng is given; radius falls back to defRadius.
func centerQuery(r *http.Request, defRadius float64) (*geo.Point, float64, error) {
	lat, hasLat, errLat := queryFloat(r, "lat")
	lng, hasLng, errLng := queryFloat(r, "lng")
	if errLat != nil || errLng != nil {
		return nil, 0, errors.New("lat and lng must be numbers")
	}
	if hasLat != hasLng {
		return nil, 0, errors.New("lat and lng must be given together")
	}

	radius, hasRadius, err := queryFloat(r, "radius")
	if err != nil || (hasRadius && (radius <= 0 || radius > maxRadiusMiles)) {
		return nil, 0, errors.New("radius must be in (0, 500]")
	}
	if !hasRadius {
		radius = defRadius
	}
	if !hasLat {
		return nil, radius, nil
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil, 0, errors.New("lat/lng out of range")
	}
	return &p, radius, nil
}
