package provider

import (
	"context"
	"net/url"
	"strconv"

	"lo/internal/event"
)

const eventbriteBaseURL = "https://www.eventbriteapi.com"

// Eventbrite uses the v3 search endpoint. Eventbrite has retired public
// search for most tokens; expect StatusError responses and treat the source
// as best effort.
type Eventbrite struct {
	token string
	opts  Options
	c     *client
}

func NewEventbrite(token string, opts Options) *Eventbrite {
	opts = opts.withDefaults(eventbriteBaseURL)
	return &Eventbrite{token: token, opts: opts, c: newClient(event.Eventbrite, opts)}
}

func (e *Eventbrite) Source() event.Source { return event.Eventbrite }

type ebText struct {
	Text string `json:"text"`
}

type ebResponse struct {
	Events []ebEvent `json:"events"`
}

type ebEvent struct {
	ID          string `json:"id"`
	Name        ebText `json:"name"`
	Description ebText `json:"description"`
	Summary     string `json:"summary"`
	URL         string `json:"url"`
	IsFree      bool   `json:"is_free"`
	Logo        *struct {
		URL string `json:"url"`
	} `json:"logo"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	Venue *struct {
		Name      string `json:"name"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
		Address   struct {
			LocalizedAddressDisplay string `json:"localized_address_display"`
		} `json:"address"`
	} `json:"venue"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
	Format *struct {
		ShortName string `json:"short_name"`
	} `json:"format"`
}

func (e *Eventbrite) Fetch(ctx context.Context, q Query) (Result, error) {
	if e.token == "" {
		return Result{Source: event.Eventbrite}, ErrNotConfigured
	}
	if err := q.Validate(); err != nil {
		return Result{Source: event.Eventbrite}, err
	}

	start, end := q.Timeframe.Window(e.opts.Now())
	params := url.Values{}
	params.Set("location.latitude", strconv.FormatFloat(q.Center.Lat, 'f', 6, 64))
	params.Set("location.longitude", strconv.FormatFloat(q.Center.Lng, 'f', 6, 64))
	params.Set("location.within", miles(q.RadiusMiles))
	params.Set("start_date.range_start", isoUTC(start))
	params.Set("start_date.range_end", isoUTC(end))
	params.Set("expand", "venue,category,format")

	var resp ebResponse
	if err := e.c.get(ctx, "/v3/events/search/", params, bearer(e.token), &resp); err != nil {
		return Result{Source: event.Eventbrite}, err
	}

	evs := make([]event.Event, 0, len(resp.Events))
	for _, r := range resp.Events {
		startAt, err := parseTime(r.Start.UTC)
		if err != nil {
			continue
		}
		ev := event.Event{
			ExternalID: r.ID,
			Source:     event.Eventbrite,
			Title:      r.Name.Text,
			EventURL:   event.Str(r.URL),
			StartDate:  startAt,
			EndDate:    optTime(r.End.UTC),
		}
		if d := event.Str(r.Description.Text); d != nil {
			ev.Description = d
		} else {
			ev.Description = event.Str(r.Summary)
		}
		if r.Logo != nil {
			ev.ImageURL = event.Str(r.Logo.URL)
		}
		if r.Venue != nil {
			ev.VenueName = event.Str(r.Venue.Name)
			ev.VenueAddress = event.Str(r.Venue.Address.LocalizedAddressDisplay)
			ev.Lat = parseCoord(r.Venue.Latitude)
			ev.Lng = parseCoord(r.Venue.Longitude)
		}
		if r.Category != nil {
			ev.Classification = event.Str(r.Category.Name)
		}
		if r.Format != nil {
			ev.Genre = event.Str(r.Format.ShortName)
		}
		if r.IsFree {
			ev.PriceMin = event.Float(0)
		}
		evs = append(evs, ev)
	}
	return finish(event.Eventbrite, evs), nil
}
