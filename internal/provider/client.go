package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"lo/internal/event"
	"lo/internal/logging"
	"lo/internal/metrics"
)

// StatusError is returned for a non-2xx provider response.
type StatusError struct {
	Source event.Source
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Status, e.Body)
}

// client is the HTTP plumbing shared by all adapters: timeouts, a minimum
// spacing between calls to the same provider, and a circuit breaker.
type client struct {
	source  event.Source
	http    *resty.Client
	gate    *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newClient(src event.Source, opts Options) *client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "lo-events/1.0").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	name := string(src)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a caller cancelling is not the provider's fault
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("provider circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &client{
		source:  src,
		http:    hc,
		gate:    rate.NewLimiter(limit, 1),
		breaker: cb,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// get performs GET path?query and decodes the JSON body into out. prepare may
// add auth headers.
func (c *client) get(ctx context.Context, path string, query url.Values, prepare func(*resty.Request), out any) error {
	if err := c.gate.Wait(ctx); err != nil {
		return fmt.Errorf("%s: wait for rate gate: %w", c.source, err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(query)
		if prepare != nil {
			prepare(req)
		}
		resp, err := req.Get(path)
		if err != nil {
			return nil, fmt.Errorf("%s: request: %w", c.source, err)
		}
		if resp.IsError() {
			return nil, &StatusError{Source: c.source, Status: resp.StatusCode(), Body: snippet(resp.Body())}
		}
		return resp.Body(), nil
	})
	metrics.ProviderDuration.WithLabelValues(string(c.source)).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
			err = fmt.Errorf("%s: %w", c.source, err)
		}
		metrics.ProviderRequests.WithLabelValues(string(c.source), outcome).Inc()
		return err
	}
	metrics.ProviderRequests.WithLabelValues(string(c.source), "ok").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.source, err)
	}
	return nil
}

// snippet trims an error body to at most 512 bytes without splitting a rune.
func snippet(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func bearer(token string) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetAuthToken(token)
	}
}
