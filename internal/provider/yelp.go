package provider

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"lo/internal/event"
)

const (
	yelpBaseURL = "https://api.yelp.com"

	metersPerMile  = 1609.344
	yelpMaxRadiusM = 40000
)

type Yelp struct {
	apiKey string
	opts   Options
	c      *client
}

func NewYelp(apiKey string, opts Options) *Yelp {
	opts = opts.withDefaults(yelpBaseURL)
	return &Yelp{apiKey: apiKey, opts: opts, c: newClient(event.Yelp, opts)}
}

func (y *Yelp) Source() event.Source { return event.Yelp }

type yelpResponse struct {
	Events []yelpEvent `json:"events"`
}

type yelpEvent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	EventSiteURL string   `json:"event_site_url"`
	ImageURL     string   `json:"image_url"`
	TimeStart    string   `json:"time_start"`
	TimeEnd      *string  `json:"time_end"`
	Cost         *float64 `json:"cost"`
	CostMax      *float64 `json:"cost_max"`
	IsFree       bool     `json:"is_free"`
	Category     string   `json:"category"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Location     struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

func (y *Yelp) Fetch(ctx context.Context, q Query) (Result, error) {
	if y.apiKey == "" {
		return Result{Source: event.Yelp}, ErrNotConfigured
	}
	if err := q.Validate(); err != nil {
		return Result{Source: event.Yelp}, err
	}

	start, end := q.Timeframe.Window(y.opts.Now())
	radius := max(1, int(math.Min(q.RadiusMiles*metersPerMile, yelpMaxRadiusM)))
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Center.Lat, 'f', 6, 64))
	params.Set("longitude", strconv.FormatFloat(q.Center.Lng, 'f', 6, 64))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("start_date", strconv.FormatInt(start.Unix(), 10))
	params.Set("end_date", strconv.FormatInt(end.Unix(), 10))
	params.Set("limit", strconv.Itoa(clamp(y.opts.PageSize, 1, 50)))
	params.Set("sort_on", "time_start")
	params.Set("sort_by", "asc")

	var resp yelpResponse
	if err := y.c.get(ctx, "/v3/events", params, bearer(y.apiKey), &resp); err != nil {
		return Result{Source: event.Yelp}, err
	}

	evs := make([]event.Event, 0, len(resp.Events))
	for _, r := range resp.Events {
		startAt, err := parseTime(r.TimeStart)
		if err != nil {
			continue
		}
		ev := event.Event{
			ExternalID:     r.ID,
			Source:         event.Yelp,
			Title:          r.Name,
			Description:    event.Str(r.Description),
			EventURL:       event.Str(r.EventSiteURL),
			ImageURL:       event.Str(r.ImageURL),
			StartDate:      startAt,
			VenueAddress:   event.Str(strings.Join(r.Location.DisplayAddress, ", ")),
			Lat:            r.Latitude,
			Lng:            r.Longitude,
			PriceMin:       r.Cost,
			PriceMax:       r.CostMax,
			Classification: event.Str(r.Category),
		}
		if r.TimeEnd != nil {
			ev.EndDate = optTime(*r.TimeEnd)
		}
		if r.IsFree && ev.PriceMin == nil {
			ev.PriceMin = event.Float(0)
		}
		evs = append(evs, ev)
	}
	return finish(event.Yelp, evs), nil
}
