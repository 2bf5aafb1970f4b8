package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"lo/internal/event"
	"lo/internal/geo"
)

type Type string

const (
	TypeUser  Type = "user"
	TypeEvent Type = "event"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeUser, TypeEvent:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown message type %q", s)
}

// EventFields are only set on event rows. User rows leave them null, so the
// unique (event_source, external_event_id) index never sees them.
type EventFields struct {
	EventSource     *string    `gorm:"column:event_source" json:"event_source,omitempty"`
	ExternalEventID *string    `gorm:"column:external_event_id" json:"external_event_id,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	EventURL        *string    `gorm:"column:event_url" json:"event_url,omitempty"`
	ImageURL        *string    `gorm:"column:image_url" json:"image_url,omitempty"`
	VenueName       *string    `json:"venue_name,omitempty"`
	VenueAddress    *string    `json:"venue_address,omitempty"`
	StartDate       *time.Time `gorm:"type:timestamptz" json:"start_date,omitempty"`
	EndDate         *time.Time `gorm:"type:timestamptz" json:"end_date,omitempty"`
	PriceMin        *float64   `json:"price_min,omitempty"`
	PriceMax        *float64   `json:"price_max,omitempty"`
	Genre           *string    `json:"genre,omitempty"`
	Classification  *string    `json:"classification,omitempty"`
}

// Message is a row of the messages table: a user post or a synced event,
// told apart by MessageType.
type Message struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MessageType Type           `gorm:"type:text;not null" json:"message_type"`
	Content     string         `gorm:"type:text;not null;default:''" json:"content"`
	Lat         float64        `gorm:"not null" json:"lat"`
	Lng         float64        `gorm:"not null" json:"lng"`
	IsPublic    bool           `gorm:"not null" json:"is_public"`
	ExpiresAt   time.Time      `gorm:"type:timestamptz;not null" json:"expires_at"`
	UserID      *string        `gorm:"index" json:"user_id"`
	Tags        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	CreatedAt   time.Time      `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`

	EventFields `gorm:"embedded"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Tags == nil {
		m.Tags = pq.StringArray{}
	}
	return nil
}

func (m Message) Location() geo.Point {
	return geo.Point{Lat: m.Lat, Lng: m.Lng}
}

// NewEventMessage builds the system-authored row for a placeable event.
func NewEventMessage(e event.Event, content string, expiresAt time.Time) (Message, error) {
	if !e.HasCoordinates() {
		return Message{}, fmt.Errorf("event %s has no coordinates", e.Key())
	}
	if e.ExternalID == "" || e.Source == "" {
		return Message{}, fmt.Errorf("event without identity: %q", e.Key())
	}
	src, id := string(e.Source), e.ExternalID
	start := e.StartDate
	return Message{
		MessageType: TypeEvent,
		Content:     content,
		Lat:         *e.Lat,
		Lng:         *e.Lng,
		IsPublic:    true,
		ExpiresAt:   expiresAt,
		Tags:        pq.StringArray{},
		EventFields: EventFields{
			EventSource:     &src,
			ExternalEventID: &id,
			Title:           event.Str(e.Title),
			Description:     e.Description,
			EventURL:        e.EventURL,
			ImageURL:        e.ImageURL,
			VenueName:       e.VenueName,
			VenueAddress:    e.VenueAddress,
			StartDate:       &start,
			EndDate:         e.EndDate,
			PriceMin:        e.PriceMin,
			PriceMax:        e.PriceMax,
			Genre:           e.Genre,
			Classification:  e.Classification,
		},
	}, nil
}
