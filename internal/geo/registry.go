package geo

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyRegistry = errors.New("city registry is empty")
	ErrDuplicateCity = errors.New("duplicate city id")
)

//go:embed cities.yaml
var defaultCitiesYAML []byte

type City struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Coordinates Point  `json:"coordinates"`
}

// Match is a city together with its distance from the queried point.
type Match struct {
	City          City    `json:"city"`
	DistanceMiles float64 `json:"distance_miles"`
}

// Registry is an immutable, ordered set of cities. Safe for concurrent use.
type Registry struct {
	cities []City
	byID   map[string]int
}

type cityFile struct {
	Cities []struct {
		ID   string  `yaml:"id"`
		Name string  `yaml:"name"`
		Lat  float64 `yaml:"lat"`
		Lng  float64 `yaml:"lng"`
	} `yaml:"cities"`
}

// DefaultRegistry returns the registry shipped with the binary.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultCitiesYAML)
}

func LoadRegistry(b []byte) (*Registry, error) {
	var f cityFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse cities: %w", err)
	}
	cities := make([]City, 0, len(f.Cities))
	for _, c := range f.Cities {
		cities = append(cities, City{
			ID:          c.ID,
			DisplayName: c.Name,
			Coordinates: Point{Lat: c.Lat, Lng: c.Lng},
		})
	}
	return NewRegistry(cities)
}

func NewRegistry(cities []City) (*Registry, error) {
	if len(cities) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{
		cities: make([]City, len(cities)),
		byID:   make(map[string]int, len(cities)),
	}
	for i, c := range cities {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, fmt.Errorf("city at index %d has no id", i)
		}
		if !c.Coordinates.Valid() {
			return nil, fmt.Errorf("city %s: coordinates out of range", c.ID)
		}
		if _, ok := r.byID[c.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCity, c.ID)
		}
		r.byID[c.ID] = i
		r.cities[i] = c
	}
	return r, nil
}

func (r *Registry) Cities() []City {
	out := make([]City, len(r.cities))
	copy(out, r.cities)
	return out
}

func (r *Registry) Lookup(id string) (City, bool) {
	i, ok := r.byID[id]
	if !ok {
		return City{}, false
	}
	return r.cities[i], true
}

// Nearest returns the registered city closest to p. Ties go to the city that
// appears first in the registry. ok is false only for an empty registry.
func (r *Registry) Nearest(p Point) (Match, bool) {
	if r == nil || len(r.cities) == 0 {
		return Match{}, false
	}
	best := Match{City: r.cities[0], DistanceMiles: DistanceMiles(p, r.cities[0].Coordinates)}
	for _, c := range r.cities[1:] {
		d := DistanceMiles(p, c.Coordinates)
		if d < best.DistanceMiles {
			best = Match{City: c, DistanceMiles: d}
		}
	}
	return best, true
}

func (r *Registry) WithinEventRadius(p Point, radiusMiles float64) bool {
	m, ok := r.Nearest(p)
	return ok && m.DistanceMiles <= radiusMiles
}

// Detect applies the event-layer policy: the nearest city if it lies within
// radiusMiles, otherwise no city at all. There is no fallback city, and a NaN
// radius or point matches nothing.
func (r *Registry) Detect(p Point, radiusMiles float64) (Match, bool) {
	m, ok := r.Nearest(p)
	if !ok || !(m.DistanceMiles <= radiusMiles) {
		return Match{}, false
	}
	return m, true
}
