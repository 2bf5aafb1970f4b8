package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"lo/internal/event"
)

const predicthqBaseURL = "https://api.predicthq.com"

type PredictHQ struct {
	token string
	opts  Options
	c     *client
}

func NewPredictHQ(token string, opts Options) *PredictHQ {
	opts = opts.withDefaults(predicthqBaseURL)
	return &PredictHQ{token: token, opts: opts, c: newClient(event.PredictHQ, opts)}
}

func (p *PredictHQ) Source() event.Source { return event.PredictHQ }

type phqResponse struct {
	Results []phqEvent `json:"results"`
}

type phqEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Labels      []string `json:"labels"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	// GeoJSON order: [lng, lat]
	Location []float64 `json:"location"`
	Entities []struct {
		Name             string `json:"name"`
		Type             string `json:"type"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"entities"`
}

func (p *PredictHQ) Fetch(ctx context.Context, q Query) (Result, error) {
	if p.token == "" {
		return Result{Source: event.PredictHQ}, ErrNotConfigured
	}
	if err := q.Validate(); err != nil {
		return Result{Source: event.PredictHQ}, err
	}

	start, end := q.Timeframe.Window(p.opts.Now())
	params := url.Values{}
	params.Set("within", fmt.Sprintf("%s@%s,%s", miles(q.RadiusMiles),
		strconv.FormatFloat(q.Center.Lat, 'f', 6, 64),
		strconv.FormatFloat(q.Center.Lng, 'f', 6, 64)))
	params.Set("active.gte", isoUTC(start))
	params.Set("active.lte", isoUTC(end))
	params.Set("limit", strconv.Itoa(p.opts.PageSize))
	params.Set("sort", "start")

	var resp phqResponse
	if err := p.c.get(ctx, "/v1/events/", params, bearer(p.token), &resp); err != nil {
		return Result{Source: event.PredictHQ}, err
	}

	evs := make([]event.Event, 0, len(resp.Results))
	for _, r := range resp.Results {
		startAt, err := parseTime(r.Start)
		if err != nil {
			continue
		}
		ev := event.Event{
			ExternalID:     r.ID,
			Source:         event.PredictHQ,
			Title:          r.Title,
			Description:    event.Str(r.Description),
			StartDate:      startAt,
			EndDate:        optTime(r.End),
			Classification: event.Str(r.Category),
		}
		if len(r.Location) == 2 {
			ev.Lng = event.Float(r.Location[0])
			ev.Lat = event.Float(r.Location[1])
		}
		for _, ent := range r.Entities {
			if ent.Type == "venue" {
				ev.VenueName = event.Str(ent.Name)
				ev.VenueAddress = event.Str(ent.FormattedAddress)
				break
			}
		}
		if len(r.Labels) > 0 {
			ev.Genre = event.Str(r.Labels[0])
		}
		evs = append(evs, ev)
	}
	return finish(event.PredictHQ, evs), nil
}
