package provider

import (
	"context"
	"net/url"
	"strconv"

	"github.com/mmcloughlin/geohash"

	"lo/internal/event"
	"lo/internal/logging"
)

const ticketmasterBaseURL = "https://app.ticketmaster.com"

// Ticketmaster queries the Discovery API. A single page is fetched; its size
// is clamped to what the API accepts.
type Ticketmaster struct {
	apiKey string
	opts   Options
	c      *client
}

func NewTicketmaster(apiKey string, opts Options) *Ticketmaster {
	opts = opts.withDefaults(ticketmasterBaseURL)
	return &Ticketmaster{apiKey: apiKey, opts: opts, c: newClient(event.Ticketmaster, opts)}
}

func (t *Ticketmaster) Source() event.Source { return event.Ticketmaster }

type tmNamed struct {
	Name string `json:"name"`
}

type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Info        string `json:"info"`
	Description string `json:"description"`
	Images      []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime  string `json:"dateTime"`
			LocalDate string `json:"localDate"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	} `json:"dates"`
	PriceRanges []struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"priceRanges"`
	Classifications []struct {
		Segment tmNamed `json:"segment"`
		Genre   tmNamed `json:"genre"`
	} `json:"classifications"`
	Embedded struct {
		Venues []tmVenue `json:"venues"`
	} `json:"_embedded"`
}

type tmVenue struct {
	Name    string `json:"name"`
	Address struct {
		Line1 string `json:"line1"`
	} `json:"address"`
	City  tmNamed `json:"city"`
	State struct {
		StateCode string `json:"stateCode"`
	} `json:"state"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

func (t *Ticketmaster) Fetch(ctx context.Context, q Query) (Result, error) {
	if t.apiKey == "" {
		return Result{Source: event.Ticketmaster}, ErrNotConfigured
	}
	if err := q.Validate(); err != nil {
		return Result{Source: event.Ticketmaster}, err
	}

	start, end := q.Timeframe.Window(t.opts.Now())
	params := url.Values{}
	params.Set("apikey", t.apiKey)
	params.Set("geoPoint", geohash.EncodeWithPrecision(q.Center.Lat, q.Center.Lng, 9))
	params.Set("radius", strconv.Itoa(wholeMiles(q.RadiusMiles)))
	params.Set("unit", "miles")
	params.Set("startDateTime", isoUTC(start))
	params.Set("endDateTime", isoUTC(end))
	params.Set("size", strconv.Itoa(clamp(t.opts.PageSize, 10, 200)))
	params.Set("sort", "date,asc")

	var resp tmResponse
	if err := t.c.get(ctx, "/discovery/v2/events.json", params, nil, &resp); err != nil {
		return Result{Source: event.Ticketmaster}, err
	}

	evs := make([]event.Event, 0, len(resp.Embedded.Events))
	for _, raw := range resp.Embedded.Events {
		e, ok := raw.normalize()
		if !ok {
			logging.Ctx(ctx).Debug().Str("source", "ticketmaster").Str("id", raw.ID).Msg("skip event without start date")
			continue
		}
		evs = append(evs, e)
	}
	return finish(event.Ticketmaster, evs), nil
}

func (r tmEvent) normalize() (event.Event, bool) {
	startAt, err := parseTime(r.Dates.Start.DateTime)
	if err != nil {
		if startAt, err = parseTime(r.Dates.Start.LocalDate); err != nil {
			return event.Event{}, false
		}
	}

	e := event.Event{
		ExternalID: r.ID,
		Source:     event.Ticketmaster,
		Title:      r.Name,
		EventURL:   event.Str(r.URL),
		StartDate:  startAt,
		EndDate:    optTime(r.Dates.End.DateTime),
	}
	if d := event.Str(r.Description); d != nil {
		e.Description = d
	} else {
		e.Description = event.Str(r.Info)
	}

	best := -1
	for i, img := range r.Images {
		if best < 0 || img.Width > r.Images[best].Width {
			best = i
		}
	}
	if best >= 0 {
		e.ImageURL = event.Str(r.Images[best].URL)
	}

	if len(r.Embedded.Venues) > 0 {
		v := r.Embedded.Venues[0]
		e.VenueName = event.Str(v.Name)
		e.VenueAddress = event.Str(joinNonEmpty(", ", v.Address.Line1, v.City.Name, v.State.StateCode))
		e.Lat = parseCoord(v.Location.Latitude)
		e.Lng = parseCoord(v.Location.Longitude)
	}
	if len(r.Classifications) > 0 {
		c := r.Classifications[0]
		e.Classification = event.Str(c.Segment.Name)
		e.Genre = event.Str(c.Genre.Name)
	}
	if len(r.PriceRanges) > 0 {
		e.PriceMin = r.PriceRanges[0].Min
		e.PriceMax = r.PriceRanges[0].Max
	}
	return e, true
}
