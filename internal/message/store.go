package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lo/internal/geo"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotDeletable = errors.New("message cannot be deleted")
	ErrInvalidInput = errors.New("invalid message")
)

const (
	DefaultUserTTL = 24 * time.Hour
	MaxUserTTL     = 7 * 24 * time.Hour
	MaxContentLen  = 500

	DefaultLimit = 200
	MaxLimit     = 500

	// upper bound of rows pulled from the bounding box before the exact
	// distance filter runs
	maxScan = 5000
)

type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// InsertEvent inserts an event row unless one with the same
// (event_source, external_event_id) exists. created reports whether a row
// was written.
func (s *Store) InsertEvent(ctx context.Context, m Message) (bool, error) {
	if m.MessageType != TypeEvent || m.EventSource == nil || m.ExternalEventID == nil {
		return false, fmt.Errorf("%w: not an event message", ErrInvalidInput)
	}
	m.UserID = nil
	m.IsPublic = true
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.Now()
	}

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_source"}, {Name: "external_event_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return false, fmt.Errorf("insert event %s/%s: %w", *m.EventSource, *m.ExternalEventID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

type CreateInput struct {
	Content  string
	Lat      float64
	Lng      float64
	IsPublic bool
	TTL      time.Duration // zero means DefaultUserTTL
}

func (in CreateInput) validate() error {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return fmt.Errorf("%w: content longer than %d characters", ErrInvalidInput, MaxContentLen)
	}
	if !(geo.Point{Lat: in.Lat, Lng: in.Lng}).Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if in.TTL < 0 || in.TTL > MaxUserTTL {
		return fmt.Errorf("%w: ttl must be within %s", ErrInvalidInput, MaxUserTTL)
	}
	return nil
}

func (s *Store) CreateUserMessage(ctx context.Context, userID string, in CreateInput) (Message, error) {
	if userID == "" {
		return Message{}, fmt.Errorf("%w: missing author", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return Message{}, err
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = DefaultUserTTL
	}

	now := s.Now()
	content := strings.TrimSpace(in.Content)
	m := Message{
		ID:          uuid.New(),
		MessageType: TypeUser,
		Content:     content,
		Lat:         in.Lat,
		Lng:         in.Lng,
		IsPublic:    in.IsPublic,
		ExpiresAt:   now.Add(ttl),
		UserID:      &userID,
		Tags:        pq.StringArray(ExtractTags(content)),
		CreatedAt:   now,
	}
	if err := s.DB.WithContext(ctx).Create(&m).Error; err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// DeleteUserMessage removes one of userID's own posts. Event messages are
// never deletable; other users' posts look like they do not exist.
func (s *Store) DeleteUserMessage(ctx context.Context, userID string, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		p, err := m.Post()
		if err != nil {
			return err
		}
		switch p := p.(type) {
		case EventPost:
			return ErrNotDeletable
		case UserPost:
			if p.AuthorID != userID {
				return ErrNotFound
			}
		}
		return tx.Where("id = ?", id).Delete(&Message{}).Error
	})
}

// Filter selects active messages. A nil Center disables the spatial filter.
type Filter struct {
	Center      *geo.Point
	RadiusMiles float64
	Type        Type
	Tag         string
	ViewerID    string // also include the viewer's own private posts
	Limit       int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	}
	return f.Limit
}

// Active returns unexpired messages, newest first.
func (s *Store) Active(ctx context.Context, f Filter) ([]Message, error) {
	q := s.DB.WithContext(ctx).Model(&Message{}).
		Where("expires_at >= ?", s.Now())

	if f.Type != "" {
		q = q.Where("message_type = ?", f.Type)
	}
	if f.ViewerID != "" {
		q = q.Where("(is_public OR user_id = ?)", f.ViewerID)
	} else {
		q = q.Where("is_public")
	}
	if tag := NormalizeTag(f.Tag); tag != "" {
		q = q.Where("? = ANY(tags)", tag)
	}

	limit := f.limit()
	if f.Center != nil {
		b := geo.BoundsAround(*f.Center, f.RadiusMiles)
		q = q.Where("lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?", b.MinLat, b.MaxLat, b.MinLng, b.MaxLng).
			Limit(maxScan)
	} else {
		q = q.Limit(limit)
	}

	var rows []Message
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query active messages: %w", err)
	}
	if f.Center != nil {
		rows = WithinRadius(rows, *f.Center, f.RadiusMiles)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// WithinRadius keeps messages whose great-circle distance to center is at
// most radiusMiles, preserving order.
func WithinRadius(rows []Message, center geo.Point, radiusMiles float64) []Message {
	out := rows[:0]
	for _, m := range rows {
		if geo.DistanceMiles(center, m.Location()) <= radiusMiles {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&Message{}).
		Where("message_type = ?", TypeEvent).
		Count(&n).Error
	return n, err
}
