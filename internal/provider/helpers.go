package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lo/internal/event"
	"lo/internal/metrics"
)

// parseTime accepts the timestamp shapes the providers emit: RFC3339 with or
// without offset, and bare dates.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

func optTime(s string) *time.Time {
	t, err := parseTime(s)
	if err != nil {
		return nil
	}
	return &t
}

// parseCoord parses a coordinate sent as a string. Blank or malformed values
// yield nil so the event is dropped rather than pinned at 0,0.
func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// isoUTC formats t the way most providers expect: second precision, Z suffix.
func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func miles(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64) + "mi"
}

// wholeMiles rounds r for APIs that only take integer radii, never below 1.
func wholeMiles(r float64) int {
	return max(1, int(r+0.5))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// finish drops events that cannot be placed on the map and wraps the rest.
func finish(src event.Source, evs []event.Event) Result {
	placeable := event.Placeable(evs)
	metrics.ProviderEvents.WithLabelValues(string(src)).Add(float64(len(placeable)))
	return Result{Events: placeable, Source: src}
}
