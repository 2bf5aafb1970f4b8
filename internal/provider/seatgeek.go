package provider

import (
	"context"
	"net/url"
	"strconv"

	"lo/internal/event"
)

const seatgeekBaseURL = "https://api.seatgeek.com"

type SeatGeek struct {
	clientID string
	opts     Options
	c        *client
}

func NewSeatGeek(clientID string, opts Options) *SeatGeek {
	opts = opts.withDefaults(seatgeekBaseURL)
	return &SeatGeek{clientID: clientID, opts: opts, c: newClient(event.SeatGeek, opts)}
}

func (s *SeatGeek) Source() event.Source { return event.SeatGeek }

type sgResponse struct {
	Events []sgEvent `json:"events"`
}

type sgEvent struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Description    string  `json:"description"`
	Type           string  `json:"type"`
	DatetimeUTC    string  `json:"datetime_utc"`
	EnddatetimeUTC *string `json:"enddatetime_utc"`
	Venue          struct {
		Name            string `json:"name"`
		Address         string `json:"address"`
		ExtendedAddress string `json:"extended_address"`
		Location        struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"location"`
	} `json:"venue"`
	Stats struct {
		LowestPrice  *float64 `json:"lowest_price"`
		HighestPrice *float64 `json:"highest_price"`
	} `json:"stats"`
	Taxonomies []struct {
		Name string `json:"name"`
	} `json:"taxonomies"`
	Performers []struct {
		Image string `json:"image"`
	} `json:"performers"`
}

func (s *SeatGeek) Fetch(ctx context.Context, q Query) (Result, error) {
	if s.clientID == "" {
		return Result{Source: event.SeatGeek}, ErrNotConfigured
	}
	if err := q.Validate(); err != nil {
		return Result{Source: event.SeatGeek}, err
	}

	start, end := q.Timeframe.Window(s.opts.Now())
	params := url.Values{}
	params.Set("client_id", s.clientID)
	params.Set("lat", strconv.FormatFloat(q.Center.Lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(q.Center.Lng, 'f', 6, 64))
	params.Set("range", miles(q.RadiusMiles))
	params.Set("datetime_utc.gte", start.UTC().Format("2006-01-02T15:04:05"))
	params.Set("datetime_utc.lte", end.UTC().Format("2006-01-02T15:04:05"))
	params.Set("per_page", strconv.Itoa(s.opts.PageSize))
	params.Set("sort", "datetime_utc.asc")

	var resp sgResponse
	if err := s.c.get(ctx, "/2/events", params, nil, &resp); err != nil {
		return Result{Source: event.SeatGeek}, err
	}

	evs := make([]event.Event, 0, len(resp.Events))
	for _, r := range resp.Events {
		startAt, err := parseTime(r.DatetimeUTC)
		if err != nil {
			continue
		}
		ev := event.Event{
			ExternalID:     strconv.FormatInt(r.ID, 10),
			Source:         event.SeatGeek,
			Title:          r.Title,
			Description:    event.Str(r.Description),
			EventURL:       event.Str(r.URL),
			StartDate:      startAt,
			VenueName:      event.Str(r.Venue.Name),
			VenueAddress:   event.Str(joinNonEmpty(", ", r.Venue.Address, r.Venue.ExtendedAddress)),
			Lat:            r.Venue.Location.Lat,
			Lng:            r.Venue.Location.Lon,
			PriceMin:       r.Stats.LowestPrice,
			PriceMax:       r.Stats.HighestPrice,
			Classification: event.Str(r.Type),
		}
		if r.EnddatetimeUTC != nil {
			ev.EndDate = optTime(*r.EnddatetimeUTC)
		}
		if len(r.Taxonomies) > 0 {
			ev.Genre = event.Str(r.Taxonomies[0].Name)
		}
		if len(r.Performers) > 0 {
			ev.ImageURL = event.Str(r.Performers[0].Image)
		}
		evs = append(evs, ev)
	}
	return finish(event.SeatGeek, evs), nil
}
