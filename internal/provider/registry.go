package provider

import (
	"context"
	"fmt"
	"time"

	"lo/internal/event"
)

// Credentials holds one secret per provider. Blank means the provider is not
// registered.
type Credentials struct {
	TicketmasterAPIKey string
	EventbriteToken    string
	SeatGeekClientID   string
	PredictHQToken     string
	YelpAPIKey         string
}

// Registry is the set of adapters the process can call.
type Registry struct {
	fetchers map[event.Source]Fetcher
}

func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[event.Source]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[f.Source()] = f
	}
	return r
}

// FromCredentials builds an adapter for every provider with a credential.
func FromCredentials(creds Credentials, timeout, minInterval time.Duration, pageSize int) *Registry {
	opts := Options{Timeout: timeout, MinInterval: minInterval, PageSize: pageSize}

	var fs []Fetcher
	if creds.TicketmasterAPIKey != "" {
		fs = append(fs, NewTicketmaster(creds.TicketmasterAPIKey, opts))
	}
	if creds.EventbriteToken != "" {
		fs = append(fs, NewEventbrite(creds.EventbriteToken, opts))
	}
	if creds.SeatGeekClientID != "" {
		fs = append(fs, NewSeatGeek(creds.SeatGeekClientID, opts))
	}
	if creds.PredictHQToken != "" {
		fs = append(fs, NewPredictHQ(creds.PredictHQToken, opts))
	}
	if creds.YelpAPIKey != "" {
		fs = append(fs, NewYelp(creds.YelpAPIKey, opts))
	}
	return NewRegistry(fs...)
}

func (r *Registry) Get(src event.Source) (Fetcher, bool) {
	f, ok := r.fetchers[src]
	return f, ok
}

// Configured lists registered sources in canonical order.
func (r *Registry) Configured() []event.Source {
	var out []event.Source
	for _, s := range event.AllSources() {
		if _, ok := r.fetchers[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Select returns fetchers for the requested sources. Sources that are known
// but not configured come back as stand-ins that fail with ErrNotConfigured,
// so FetchAll reports them as failed like any other provider error.
func (r *Registry) Select(sources []event.Source) []Fetcher {
	out := make([]Fetcher, 0, len(sources))
	seen := make(map[event.Source]bool, len(sources))
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		if f, ok := r.fetchers[s]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, missing(s))
	}
	return out
}

type missing event.Source

func (m missing) Source() event.Source { return event.Source(m) }

func (m missing) Fetch(_ context.Context, _ Query) (Result, error) {
	return Result{Source: event.Source(m)}, fmt.Errorf("%s: %w", m, ErrNotConfigured)
}
