package eventsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"lo/internal/event"
	"lo/internal/geo"
	"lo/internal/logging"
	"lo/internal/metrics"
	"lo/internal/provider"
)

var ErrInvalidRequest = errors.New("invalid sync request")

// Notifier is told when new messages were written.
type Notifier interface {
	NotifyMessagesChanged(created int, sources []string)
}

type Center struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// Request is the body of the sync entrypoint.
type Request struct {
	Source    []string `json:"source" validate:"required,min=1,dive,required"`
	Center    Center   `json:"center"`
	Radius    float64  `json:"radius" validate:"gt=0,lte=500"`
	Timeframe string   `json:"timeframe" validate:"required"`
	RequestID string   `json:"requestId,omitempty"`
}

type EventCounts struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type SourceReport struct {
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
}

// Response is returned for every valid request. Partial provider failure
// shows up only in Sources.Failed.
type Response struct {
	Success bool         `json:"success"`
	City    *geo.City    `json:"city"`
	Events  EventCounts  `json:"events"`
	Sources SourceReport `json:"sources"`
}

type Service struct {
	Providers   *provider.Registry
	Writer      *Writer
	Cities      *geo.Registry
	EventRadius float64
	Notifier    Notifier

	validate *validator.Validate
}

func NewService(providers *provider.Registry, w *Writer, cities *geo.Registry, eventRadius float64, n Notifier) *Service {
	return &Service{
		Providers:   providers,
		Writer:      w,
		Cities:      cities,
		EventRadius: eventRadius,
		Notifier:    n,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

type parsed struct {
	sources   []event.Source
	center    geo.Point
	timeframe event.Timeframe
}

func (s *Service) parse(req Request) (parsed, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return parsed{}, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return parsed{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	tf, err := event.ParseTimeframe(req.Timeframe)
	if err != nil {
		return parsed{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p := parsed{
		center:    geo.Point{Lat: *req.Center.Lat, Lng: *req.Center.Lng},
		timeframe: tf,
	}
	for _, raw := range req.Source {
		src, err := event.ParseSource(raw)
		if err != nil {
			return parsed{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		p.sources = append(p.sources, src)
	}
	return p, nil
}

// Sync fetches the requested sources around the center and stores new
// events. A center outside every city's event radius fetches nothing and
// returns a nil City.
func (s *Service) Sync(ctx context.Context, req Request) (Response, error) {
	p, err := s.parse(req)
	if err != nil {
		return Response{}, err
	}
	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	log := logging.Ctx(ctx)
	resp := Response{
		Success: true,
		Sources: SourceReport{Processed: []string{}, Failed: []string{}},
	}

	match, ok := s.Cities.Detect(p.center, s.EventRadius)
	if !ok {
		log.Info().Float64("lat", p.center.Lat).Float64("lng", p.center.Lng).Msg("sync skipped: no city within event radius")
		return resp, nil
	}
	city := match.City
	resp.City = &city

	q := provider.Query{
		Center:      p.center,
		RadiusMiles: req.Radius,
		Timeframe:   p.timeframe,
		RequestID:   req.RequestID,
	}
	if q.RequestID == "" {
		q.RequestID = logging.RequestID(ctx)
	}

	var total Stats
	for _, out := range provider.FetchAll(ctx, s.Providers.Select(p.sources), q) {
		if out.Err != nil {
			resp.Sources.Failed = append(resp.Sources.Failed, string(out.Source))
			continue
		}
		st := s.Writer.Write(ctx, out.Events)
		total.add(st)
		resp.Sources.Processed = append(resp.Sources.Processed, string(out.Source))
		log.Info().
			Str("source", string(out.Source)).
			Str("city", city.ID).
			Int("total", st.Total).
			Int("new", st.New).
			Int("skipped", st.Skipped).
			Int("failed", st.Failed).
			Msg("source synced")
	}

	resp.Events = EventCounts{Total: total.Total, Created: total.New}
	if total.New > 0 && s.Notifier != nil {
		s.Notifier.NotifyMessagesChanged(total.New, resp.Sources.Processed)
	}
	return resp, nil
}
