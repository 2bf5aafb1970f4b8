package message

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"lo/internal/event"
	"lo/internal/geo"
)

func TestExtractTags(t *testing.T) {
	assert.Nil(t, ExtractTags("no tags here"))
	assert.Equal(t, []string{"la", "music", "café"}, ExtractTags("#LA tonight #music #la #Café!"))

	var b []byte
	for i := 0; i < 30; i++ {
		b = append(b, []byte("#t"+string(rune('a'+i%26))+string(rune('a'+i/26))+" ")...)
	}
	assert.Len(t, ExtractTags(string(b)), maxTags)
}

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "music", NormalizeTag(" #Music "))
	assert.Equal(t, "", NormalizeTag("#"))
}

func placeableEvent() event.Event {
	return event.Event{
		ExternalID: "tm-1",
		Source:     event.Ticketmaster,
		Title:      "Concert",
		Lat:        event.Float(34.04),
		Lng:        event.Float(-118.27),
		StartDate:  time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC),
		VenueName:  event.Str("Arena"),
	}
}

func TestNewEventMessage(t *testing.T) {
	exp := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	m, err := NewEventMessage(placeableEvent(), "content", exp)
	require.NoError(t, err)

	assert.Equal(t, TypeEvent, m.MessageType)
	assert.True(t, m.IsPublic)
	assert.Nil(t, m.UserID)
	assert.Equal(t, exp, m.ExpiresAt)
	assert.Equal(t, "ticketmaster", *m.EventSource)
	assert.Equal(t, "tm-1", *m.ExternalEventID)
	assert.Equal(t, "Concert", *m.Title)
	assert.InDelta(t, 34.04, m.Lat, 0)
}

func TestNewEventMessage_RequiresCoordinates(t *testing.T) {
	e := placeableEvent()
	e.Lng = nil
	_, err := NewEventMessage(e, "x", time.Now())
	assert.Error(t, err)
}

func TestPost_Variants(t *testing.T) {
	m, err := NewEventMessage(placeableEvent(), "content", time.Now())
	require.NoError(t, err)
	m.ID = uuid.New()

	p, err := m.Post()
	require.NoError(t, err)
	ep, ok := p.(EventPost)
	require.True(t, ok)
	assert.Equal(t, m.ID, ep.PostID())
	assert.Equal(t, event.Ticketmaster, ep.Event.Source)
	assert.Equal(t, "Concert", ep.Event.Title)
	assert.True(t, ep.Event.HasCoordinates())

	author := "user-1"
	u := Message{ID: uuid.New(), MessageType: TypeUser, Content: "hi #there", UserID: &author, Tags: []string{"there"}}
	p, err = u.Post()
	require.NoError(t, err)
	up, ok := p.(UserPost)
	require.True(t, ok)
	assert.Equal(t, "user-1", up.AuthorID)
	assert.Equal(t, []string{"there"}, up.Tags)
}

func TestPost_CorruptRows(t *testing.T) {
	_, err := Message{MessageType: TypeUser}.Post()
	assert.ErrorIs(t, err, ErrCorruptRow)

	_, err = Message{MessageType: TypeEvent}.Post()
	assert.ErrorIs(t, err, ErrCorruptRow)

	_, err = Message{MessageType: "story"}.Post()
	assert.ErrorIs(t, err, ErrCorruptRow)
}

func TestWithinRadius(t *testing.T) {
	la := geo.Point{Lat: 34.0522, Lng: -118.2437}
	rows := []Message{
		{Content: "downtown", Lat: 34.05, Lng: -118.25},
		{Content: "san diego", Lat: 32.7157, Lng: -117.1611},
		{Content: "pasadena", Lat: 34.1478, Lng: -118.1445},
	}
	got := WithinRadius(rows, la, 25)
	require.Len(t, got, 2)
	assert.Equal(t, "downtown", got[0].Content)
	assert.Equal(t, "pasadena", got[1].Content)
}

func TestCreateInput_Validate(t *testing.T) {
	ok := CreateInput{Content: "hello", Lat: 34, Lng: -118}
	assert.NoError(t, ok.validate())

	cases := map[string]CreateInput{
		"blank":     {Content: "   ", Lat: 34, Lng: -118},
		"too long":  {Content: string(make([]rune, MaxContentLen+1)), Lat: 34, Lng: -118},
		"bad lat":   {Content: "x", Lat: 91, Lng: 0},
		"ttl range": {Content: "x", TTL: 8 * 24 * time.Hour},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.validate(), ErrInvalidInput)
		})
	}
}

func TestFilter_Limit(t *testing.T) {
	assert.Equal(t, DefaultLimit, Filter{}.limit())
	assert.Equal(t, MaxLimit, Filter{Limit: 10_000}.limit())
	assert.Equal(t, 5, Filter{Limit: 5}.limit())
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("event")
	require.NoError(t, err)
	assert.Equal(t, TypeEvent, typ)
	_, err = ParseType("story")
	assert.Error(t, err)
}

// A gorm default on is_public would turn a false value into the column
// default on insert.
func TestMessageSchema_IsPublicHasNoDefault(t *testing.T) {
	s, err := schema.Parse(&Message{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	f := s.LookUpField("is_public")
	require.NotNil(t, f)
	assert.False(t, f.HasDefaultValue)
	assert.True(t, f.NotNull)
}
