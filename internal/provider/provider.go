// Package provider holds one adapter per third-party ticketing API. Each
// adapter turns a Query into a provider HTTP call and normalizes the response
// into event.Event values.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lo/internal/event"
	"lo/internal/geo"
	"lo/internal/logging"
)

var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrInvalidQuery  = errors.New("invalid query")
)

type Query struct {
	Center      geo.Point
	RadiusMiles float64
	Timeframe   event.Timeframe
	RequestID   string
}

func (q Query) Validate() error {
	if !q.Center.Valid() {
		return fmt.Errorf("%w: center out of range", ErrInvalidQuery)
	}
	if q.RadiusMiles <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidQuery)
	}
	if q.Timeframe.Duration() == 0 {
		return fmt.Errorf("%w: unknown timeframe %q", ErrInvalidQuery, q.Timeframe)
	}
	return nil
}

type Result struct {
	Events []event.Event `json:"events"`
	Source event.Source  `json:"source"`
}

// Fetcher is implemented by every provider adapter.
type Fetcher interface {
	Source() event.Source
	Fetch(ctx context.Context, q Query) (Result, error)
}

// Options tune the shared HTTP client of an adapter. Zero values pick defaults.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	PageSize    int
	Now         func() time.Time
}

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FetchEvents calls f and never fails: errors are logged and reported as an
// empty result tagged with the source. Callers that must tell "no events"
// from "source failed" use FetchAll instead.
func FetchEvents(ctx context.Context, f Fetcher, q Query) Result {
	res, err := f.Fetch(ctx, q)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("source", string(f.Source())).Msg("fetch events")
		return Result{Events: []event.Event{}, Source: f.Source()}
	}
	return res
}

// Outcome is the per-source result of FetchAll.
type Outcome struct {
	Source event.Source
	Events []event.Event
	Err    error
}

// FetchAll queries every fetcher concurrently. One failing source never
// affects the others; outcomes are returned in the order of fetchers.
func FetchAll(ctx context.Context, fetchers []Fetcher, q Query) []Outcome {
	out := make([]Outcome, len(fetchers))
	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[i] = Outcome{Source: f.Source(), Err: fmt.Errorf("%s: panic: %v", f.Source(), r)}
				}
			}()
			res, err := f.Fetch(ctx, q)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("source", string(f.Source())).Msg("provider failed")
			}
			out[i] = Outcome{Source: f.Source(), Events: res.Events, Err: err}
		}(i, f)
	}
	wg.Wait()
	return out
}
