package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lo/internal/event"
	"lo/internal/geo"
)

var fixedNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func testOpts(baseURL string) Options {
	return Options{BaseURL: baseURL, Timeout: 2 * time.Second, Now: func() time.Time { return fixedNow }}
}

func laQuery() Query {
	return Query{Center: geo.Point{Lat: 34.0522, Lng: -118.2437}, RadiusMiles: 25, Timeframe: "24h"}
}

func serveJSON(t *testing.T, path string, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, path, r.URL.Path)
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTicketmaster_Fetch(t *testing.T) {
	body := `{"_embedded":{"events":[
		{"id":"tm-1","name":"Concert","url":"https://tm.example/1","info":"Bring ID",
		 "images":[{"url":"small.jpg","width":100},{"url":"big.jpg","width":1024}],
		 "dates":{"start":{"dateTime":"2025-06-02T03:00:00Z"}},
		 "priceRanges":[{"min":25,"max":99.5}],
		 "classifications":[{"segment":{"name":"Music"},"genre":{"name":"Rock"}}],
		 "_embedded":{"venues":[{"name":"Crypto.com Arena","address":{"line1":"1111 S Figueroa St"},
		   "city":{"name":"Los Angeles"},"state":{"stateCode":"CA"},
		   "location":{"latitude":"34.0430","longitude":"-118.2673"}}]}},
		{"id":"tm-2","name":"No venue location","dates":{"start":{"dateTime":"2025-06-02T04:00:00Z"}},
		 "_embedded":{"venues":[{"name":"Somewhere","location":{"latitude":"","longitude":""}}]}},
		{"id":"tm-3","name":"No date","dates":{"start":{}},
		 "_embedded":{"venues":[{"location":{"latitude":"34","longitude":"-118"}}]}}
	]}}`
	srv := serveJSON(t, "/discovery/v2/events.json", func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tm-key", q.Get("apikey"))
		assert.Len(t, q.Get("geoPoint"), 9)
		assert.Equal(t, "25", q.Get("radius"))
		assert.Equal(t, "miles", q.Get("unit"))
		assert.Equal(t, "2025-06-01T18:00:00Z", q.Get("startDateTime"))
		assert.Equal(t, "2025-06-02T18:00:00Z", q.Get("endDateTime"))
		assert.Equal(t, "50", q.Get("size"))
	}, body)

	res, err := NewTicketmaster("tm-key", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.NoError(t, err)
	assert.Equal(t, event.Ticketmaster, res.Source)
	require.Len(t, res.Events, 1)

	e := res.Events[0]
	assert.Equal(t, "tm-1", e.ExternalID)
	assert.Equal(t, "Bring ID", *e.Description)
	assert.Equal(t, "big.jpg", *e.ImageURL)
	assert.Equal(t, "Crypto.com Arena", *e.VenueName)
	assert.Equal(t, "1111 S Figueroa St, Los Angeles, CA", *e.VenueAddress)
	assert.InDelta(t, 34.0430, *e.Lat, 1e-9)
	assert.InDelta(t, -118.2673, *e.Lng, 1e-9)
	assert.Equal(t, "Music", *e.Classification)
	assert.Equal(t, "Rock", *e.Genre)
	assert.InDelta(t, 25.0, *e.PriceMin, 0)
	assert.InDelta(t, 99.5, *e.PriceMax, 0)
	assert.True(t, e.StartDate.Equal(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)))
}

func TestTicketmaster_SmallRadiusRoundsUpToOneMile(t *testing.T) {
	srv := serveJSON(t, "/discovery/v2/events.json", func(r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("radius"))
	}, `{}`)

	q := laQuery()
	q.RadiusMiles = 0.3
	_, err := NewTicketmaster("k", testOpts(srv.URL)).Fetch(context.Background(), q)
	require.NoError(t, err)
}

func TestTicketmaster_EmptyResponse(t *testing.T) {
	srv := serveJSON(t, "/discovery/v2/events.json", nil, `{"page":{"totalElements":0}}`)

	res, err := NewTicketmaster("k", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestEventbrite_Fetch(t *testing.T) {
	body := `{"events":[{"id":"eb-1","name":{"text":"Meetup"},"summary":"Short",
		"url":"https://eb.example/1","logo":{"url":"logo.png"},
		"start":{"utc":"2025-06-01T20:00:00Z"},"end":{"utc":"2025-06-01T22:00:00Z"},
		"is_free":true,"category":{"name":"Science & Tech"},"format":{"short_name":"Meetup"},
		"venue":{"name":"Hall","latitude":"34.05","longitude":"-118.25",
		  "address":{"localized_address_display":"1 Main St, Los Angeles"}}}]}`
	srv := serveJSON(t, "/v3/events/search/", func(r *http.Request) {
		assert.Equal(t, "Bearer eb-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "25mi", q.Get("location.within"))
		assert.Equal(t, "34.052200", q.Get("location.latitude"))
	}, body)

	res, err := NewEventbrite("eb-token", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, "Meetup", e.Title)
	assert.Equal(t, "1 Main St, Los Angeles", *e.VenueAddress)
	assert.Equal(t, "Science & Tech", *e.Classification)
	require.NotNil(t, e.PriceMin)
	assert.Zero(t, *e.PriceMin)
	require.NotNil(t, e.EndDate)
}

func TestSeatGeek_Fetch(t *testing.T) {
	body := `{"events":[
		{"id":12345,"title":"Dodgers vs Giants","url":"https://sg.example/1","type":"mlb",
		 "datetime_utc":"2025-06-02T02:10:00",
		 "venue":{"name":"Dodger Stadium","address":"1000 Vin Scully Ave","extended_address":"Los Angeles, CA 90012",
		   "location":{"lat":34.0739,"lon":-118.24}},
		 "stats":{"lowest_price":18,"highest_price":null},
		 "taxonomies":[{"name":"sports"}],"performers":[{"image":"dodgers.jpg"}]},
		{"id":2,"title":"Unplaced","datetime_utc":"2025-06-02T02:10:00","venue":{"location":{}}}
	]}`
	srv := serveJSON(t, "/2/events", func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "sg-id", q.Get("client_id"))
		assert.Equal(t, "25mi", q.Get("range"))
		assert.Equal(t, "2025-06-01T18:00:00", q.Get("datetime_utc.gte"))
		assert.Equal(t, "2025-06-02T18:00:00", q.Get("datetime_utc.lte"))
	}, body)

	res, err := NewSeatGeek("sg-id", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, "12345", e.ExternalID)
	assert.Equal(t, "1000 Vin Scully Ave, Los Angeles, CA 90012", *e.VenueAddress)
	assert.Equal(t, "dodgers.jpg", *e.ImageURL)
	assert.Equal(t, "sports", *e.Genre)
	assert.Nil(t, e.PriceMax)
}

func TestPredictHQ_SwapsLocation(t *testing.T) {
	body := `{"results":[{"id":"phq-1","title":"Festival","category":"festivals","labels":["music","outdoor"],
		"start":"2025-06-01T19:00:00Z","end":"2025-06-02T01:00:00Z",
		"location":[-118.2437,34.0522],
		"entities":[{"name":"Org","type":"organization"},{"name":"Grand Park","type":"venue","formatted_address":"200 N Grand Ave"}]}]}`
	srv := serveJSON(t, "/v1/events/", func(r *http.Request) {
		assert.Equal(t, "Bearer phq", r.Header.Get("Authorization"))
		assert.Equal(t, "25mi@34.052200,-118.243700", r.URL.Query().Get("within"))
	}, body)

	res, err := NewPredictHQ("phq", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.InDelta(t, 34.0522, *e.Lat, 1e-9)
	assert.InDelta(t, -118.2437, *e.Lng, 1e-9)
	assert.Equal(t, "Grand Park", *e.VenueName)
	assert.Equal(t, "music", *e.Genre)
}

func TestYelp_CapsRadius(t *testing.T) {
	body := `{"events":[{"id":"y-1","name":"Food Fair","time_start":"2025-06-01T12:00:00-07:00",
		"is_free":true,"category":"food-and-drink","latitude":34.05,"longitude":-118.24,
		"location":{"display_address":["100 Spring St","Los Angeles, CA"]}}]}`
	srv := serveJSON(t, "/v3/events", func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "40000", q.Get("radius"))
		assert.Equal(t, "1748800800", q.Get("start_date"))
	}, body)

	q := laQuery()
	q.RadiusMiles = 50
	res, err := NewYelp("y", testOpts(srv.URL)).Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, "100 Spring St, Los Angeles, CA", *e.VenueAddress)
	assert.True(t, e.StartDate.Equal(time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)))
	require.NotNil(t, e.PriceMin)
	assert.Zero(t, *e.PriceMin)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"fault":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewTicketmaster("k", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, event.Ticketmaster, se.Source)
}

func TestSnippet_KeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", 511) + "é" + strings.Repeat("b", 100)
	got := snippet([]byte(body))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 511), got)

	assert.Equal(t, "short", snippet([]byte("  short \n")))
	assert.Len(t, snippet([]byte(strings.Repeat("x", 600))), 512)
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := serveJSON(t, "/2/events", nil, `{"events": [`)

	_, err := NewSeatGeek("id", testOpts(srv.URL)).Fetch(context.Background(), laQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestFetch_NotConfigured(t *testing.T) {
	_, err := NewYelp("", Options{}).Fetch(context.Background(), laQuery())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetch_InvalidQuery(t *testing.T) {
	q := laQuery()
	q.Timeframe = "3d"
	_, err := NewPredictHQ("t", Options{}).Fetch(context.Background(), q)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

type stubFetcher struct {
	src    event.Source
	events []event.Event
	err    error
	panics bool
}

func (s stubFetcher) Source() event.Source { return s.src }

func (s stubFetcher) Fetch(context.Context, Query) (Result, error) {
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return Result{Source: s.src}, s.err
	}
	return Result{Source: s.src, Events: s.events}, nil
}

func TestFetchEvents_SwallowsErrors(t *testing.T) {
	res := FetchEvents(context.Background(), stubFetcher{src: event.Yelp, err: errors.New("down")}, laQuery())
	assert.Equal(t, event.Yelp, res.Source)
	assert.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
}

func TestFetchAll_IsolatesFailures(t *testing.T) {
	ok := stubFetcher{src: event.Ticketmaster, events: []event.Event{{ExternalID: "1"}}}
	bad := stubFetcher{src: event.SeatGeek, err: errors.New("timeout")}
	crash := stubFetcher{src: event.Yelp, panics: true}

	out := FetchAll(context.Background(), []Fetcher{ok, bad, crash}, laQuery())
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Len(t, out[0].Events, 1)
	assert.Error(t, out[1].Err)
	assert.Equal(t, event.SeatGeek, out[1].Source)
	assert.ErrorContains(t, out[2].Err, "panic")
}

func TestRegistry_Select(t *testing.T) {
	reg := FromCredentials(Credentials{TicketmasterAPIKey: "k"}, time.Second, 0, 20)
	assert.Equal(t, []event.Source{event.Ticketmaster}, reg.Configured())

	fs := reg.Select([]event.Source{event.Ticketmaster, event.Yelp, event.Ticketmaster})
	require.Len(t, fs, 2)
	assert.Equal(t, event.Yelp, fs[1].Source())

	_, err := fs[1].Fetch(context.Background(), laQuery())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
