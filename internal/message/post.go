package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lo/internal/event"
	"lo/internal/geo"
)

var ErrCorruptRow = errors.New("corrupt message row")

// Post is the typed view of a Message: either a UserPost or an EventPost.
type Post interface {
	PostID() uuid.UUID
	isPost()
}

type common struct {
	ID        uuid.UUID
	Location  geo.Point
	Content   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c common) PostID() uuid.UUID { return c.ID }

type UserPost struct {
	common
	AuthorID string
	IsPublic bool
	Tags     []string
}

type EventPost struct {
	common
	Event event.Event
}

func (UserPost) isPost()  {}
func (EventPost) isPost() {}

// Post converts the row into its variant, rejecting rows whose columns
// contradict the discriminator.
func (m Message) Post() (Post, error) {
	c := common{
		ID:        m.ID,
		Location:  m.Location(),
		Content:   m.Content,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}

	switch m.MessageType {
	case TypeUser:
		if m.UserID == nil {
			return nil, fmt.Errorf("%w: user message %s without author", ErrCorruptRow, m.ID)
		}
		return UserPost{common: c, AuthorID: *m.UserID, IsPublic: m.IsPublic, Tags: []string(m.Tags)}, nil

	case TypeEvent:
		f := m.EventFields
		if f.EventSource == nil || f.ExternalEventID == nil {
			return nil, fmt.Errorf("%w: event message %s without source identity", ErrCorruptRow, m.ID)
		}
		lat, lng := m.Lat, m.Lng
		ev := event.Event{
			ExternalID:     *f.ExternalEventID,
			Source:         event.Source(*f.EventSource),
			Description:    f.Description,
			EventURL:       f.EventURL,
			ImageURL:       f.ImageURL,
			VenueName:      f.VenueName,
			VenueAddress:   f.VenueAddress,
			Lat:            &lat,
			Lng:            &lng,
			EndDate:        f.EndDate,
			PriceMin:       f.PriceMin,
			PriceMax:       f.PriceMax,
			Genre:          f.Genre,
			Classification: f.Classification,
		}
		if f.Title != nil {
			ev.Title = *f.Title
		}
		if f.StartDate != nil {
			ev.StartDate = *f.StartDate
		}
		return EventPost{common: c, Event: ev}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrCorruptRow, m.MessageType)
}
