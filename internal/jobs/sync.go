package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"lo/internal/eventsync"
	"lo/internal/geo"
	"lo/internal/logging"
)

// SyncPayload is the payload of an EVENT_SYNC job: poll one city.
type SyncPayload struct {
	City        string   `json:"city"`
	RadiusMiles float64  `json:"radius_miles"`
	Timeframe   string   `json:"timeframe"`
	Sources     []string `json:"sources"`
}

type Syncer interface {
	Sync(ctx context.Context, req eventsync.Request) (eventsync.Response, error)
}

// EventSyncHandler polls the payload's city through the sync service.
func EventSyncHandler(svc Syncer, cities *geo.Registry) Handler {
	return func(ctx context.Context, job *Job) error {
		var p SyncPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: bad payload: %v", ErrPermanent, err)
		}
		city, ok := cities.Lookup(p.City)
		if !ok {
			return fmt.Errorf("%w: unknown city %q", ErrPermanent, p.City)
		}

		lat, lng := city.Coordinates.Lat, city.Coordinates.Lng
		resp, err := svc.Sync(ctx, eventsync.Request{
			Source:    p.Sources,
			Center:    eventsync.Center{Lat: &lat, Lng: &lng},
			Radius:    p.RadiusMiles,
			Timeframe: p.Timeframe,
			RequestID: fmt.Sprintf("job-%d", job.ID),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}

		logging.Info().
			Str("city", p.City).
			Int("created", resp.Events.Created).
			Strs("failed_sources", resp.Sources.Failed).
			Msg("city polled")
		if len(resp.Sources.Processed) == 0 && len(resp.Sources.Failed) > 0 {
			return fmt.Errorf("all sources failed for %s: %v", p.City, resp.Sources.Failed)
		}
		return nil
	}
}

// Enqueuer is the part of Repo the scheduler uses.
type Enqueuer interface {
	EnsureRecurring(ctx context.Context, key, typ string, payload []byte, runAt time.Time) error
}

// Scheduler seeds one recurring EVENT_SYNC job per polled city.
type Scheduler struct {
	Jobs        Enqueuer
	Cities      *geo.Registry
	RadiusMiles float64
	Timeframe   string
	Sources     []string
	Now         func() time.Time
}

func (s *Scheduler) SeedCities(ctx context.Context, cityIDs []string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	for _, id := range cityIDs {
		if _, ok := s.Cities.Lookup(id); !ok {
			return fmt.Errorf("seed polling: unknown city %q", id)
		}
		payload, err := json.Marshal(SyncPayload{
			City:        id,
			RadiusMiles: s.RadiusMiles,
			Timeframe:   s.Timeframe,
			Sources:     s.Sources,
		})
		if err != nil {
			return err
		}
		if err := s.Jobs.EnsureRecurring(ctx, dedupeKey(id), TypeEventSync, payload, now()); err != nil {
			return fmt.Errorf("seed polling for %s: %w", id, err)
		}
	}
	return nil
}

func dedupeKey(cityID string) string {
	return "event_sync:" + cityID
}
