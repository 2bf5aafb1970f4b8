// Package eventsync turns provider results into event messages. Writer does
// the idempotent insert; Service is the sync entrypoint used by HTTP and the
// polling worker.
package eventsync

import (
	"context"
	"time"

	"lo/internal/event"
	"lo/internal/logging"
	"lo/internal/message"
	"lo/internal/metrics"
)

const DefaultTTL = 48 * time.Hour

// EventStore is the part of message.Store the writer needs.
type EventStore interface {
	InsertEvent(ctx context.Context, m message.Message) (bool, error)
}

// Stats summarizes one Write. Total counts placeable events handed to the
// store; Dropped counts events discarded for missing coordinates.
type Stats struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}

func (s *Stats) add(o Stats) {
	s.Total += o.Total
	s.New += o.New
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Dropped += o.Dropped
}

type Writer struct {
	Store EventStore
	TTL   time.Duration
	Now   func() time.Time
}

func NewWriter(store EventStore, ttl time.Duration) *Writer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Writer{Store: store, TTL: ttl, Now: time.Now}
}

// Write inserts every event not yet stored. A failing event is logged and
// counted; it never stops the rest of the batch.
func (w *Writer) Write(ctx context.Context, evs []event.Event) Stats {
	var st Stats
	log := logging.Ctx(ctx)

	for _, e := range evs {
		if !e.HasCoordinates() {
			st.Dropped++
			continue
		}
		st.Total++

		m, err := message.NewEventMessage(e, event.RenderContent(e), w.Now().Add(w.TTL))
		if err != nil {
			st.Failed++
			log.Warn().Err(err).Str("event", e.Key()).Msg("build event message")
			continue
		}

		created, err := w.Store.InsertEvent(ctx, m)
		switch {
		case err != nil:
			st.Failed++
			log.Error().Err(err).Str("event", e.Key()).Msg("insert event")
		case created:
			st.New++
		default:
			st.Skipped++
		}
	}

	metrics.EventsWritten.WithLabelValues("created").Add(float64(st.New))
	metrics.EventsWritten.WithLabelValues("skipped").Add(float64(st.Skipped))
	metrics.EventsWritten.WithLabelValues("failed").Add(float64(st.Failed))
	metrics.EventsWritten.WithLabelValues("dropped").Add(float64(st.Dropped))
	return st
}
