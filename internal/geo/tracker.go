package geo

import (
	"fmt"
	"sync"
	"time"
)

// MapInteraction is the kind of map event that reports a new center.
type MapInteraction string

const (
	MapIdle          MapInteraction = "idle"
	MapCenterChanged MapInteraction = "center_changed"
	MapZoomChanged   MapInteraction = "zoom_changed"
)

func ParseMapInteraction(s string) (MapInteraction, error) {
	switch k := MapInteraction(s); k {
	case MapIdle, MapCenterChanged, MapZoomChanged:
		return k, nil
	default:
		return "", fmt.Errorf("unknown map interaction %q", s)
	}
}

// Detection is the resolver outcome for a map center. City is nil when the
// center is outside every city's event radius; the events layer is then hidden.
type Detection struct {
	Center        Point   `json:"center"`
	City          *City   `json:"city"`
	DistanceMiles float64 `json:"distance_miles,omitempty"`
}

// CenterTracker re-detects the nearest city as the map moves and reports only
// changes of the detected city (including to and from no city).
type CenterTracker struct {
	registry *Registry
	radius   float64
	onChange func(Detection)
	debounce *Debouncer

	mu       sync.Mutex
	reported bool
	lastID   string
}

func NewCenterTracker(reg *Registry, radiusMiles float64, wait time.Duration, onChange func(Detection)) *CenterTracker {
	return &CenterTracker{
		registry: reg,
		radius:   radiusMiles,
		onChange: onChange,
		debounce: NewDebouncer(wait),
	}
}

// Observe records a map interaction. All interaction kinds re-detect the same
// way; detection runs after the debounce window.
func (t *CenterTracker) Observe(kind MapInteraction, center Point) {
	t.debounce.Trigger(func() { t.detect(center) })
}

func (t *CenterTracker) detect(center Point) {
	det := Detection{Center: center}
	id := ""
	if m, ok := t.registry.Detect(center, t.radius); ok {
		c := m.City
		det.City = &c
		det.DistanceMiles = m.DistanceMiles
		id = c.ID
	}

	t.mu.Lock()
	changed := !t.reported || id != t.lastID
	t.reported = true
	t.lastID = id
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(det)
	}
}

// Close releases the tracker. Pending detections are dropped.
func (t *CenterTracker) Close() {
	t.debounce.Stop()
}
