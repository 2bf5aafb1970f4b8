// Package event defines the provider-neutral event shape produced by every
// fetcher and consumed by the sync writer.
package event

import (
	"fmt"
	"strings"
	"time"
)

type Source string

const (
	Ticketmaster Source = "ticketmaster"
	Eventbrite   Source = "eventbrite"
	SeatGeek     Source = "seatgeek"
	PredictHQ    Source = "predicthq"
	Yelp         Source = "yelp"
)

func AllSources() []Source {
	return []Source{Ticketmaster, Eventbrite, SeatGeek, PredictHQ, Yelp}
}

func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources() {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown event source %q", s)
}

type Timeframe string

var timeframes = map[Timeframe]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
	"48h": 48 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the length of the window, or 0 for an unknown timeframe.
func (t Timeframe) Duration() time.Duration {
	return timeframes[t]
}

// Window converts the relative timeframe into absolute [now, now+d] bounds.
func (t Timeframe) Window(now time.Time) (time.Time, time.Time) {
	return now, now.Add(t.Duration())
}

// Event is a normalized provider event. It is never persisted as-is and has no
// identity beyond (Source, ExternalID).
type Event struct {
	ExternalID     string     `json:"external_id"`
	Source         Source     `json:"source"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	EventURL       *string    `json:"event_url,omitempty"`
	ImageURL       *string    `json:"image_url,omitempty"`
	VenueName      *string    `json:"venue_name,omitempty"`
	VenueAddress   *string    `json:"venue_address,omitempty"`
	Lat            *float64   `json:"lat,omitempty"`
	Lng            *float64   `json:"lng,omitempty"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	PriceMin       *float64   `json:"price_min,omitempty"`
	PriceMax       *float64   `json:"price_max,omitempty"`
	Genre          *string    `json:"genre,omitempty"`
	Classification *string    `json:"classification,omitempty"`
}

// HasCoordinates reports whether the event can be placed on the map.
func (e Event) HasCoordinates() bool {
	return e.Lat != nil && e.Lng != nil
}

func (e Event) Key() string {
	return string(e.Source) + "::" + e.ExternalID
}

// Placeable returns the events that carry both coordinates, preserving order.
func Placeable(in []Event) []Event {
	out := make([]Event, 0, len(in))
	for _, e := range in {
		if e.HasCoordinates() {
			out = append(out, e)
		}
	}
	return out
}

// Str returns a pointer to the trimmed s, or nil when s is blank.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func Float(f float64) *float64 { return &f }
