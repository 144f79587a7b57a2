package events

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrForbidden    = errors.New("caller is not the organizer")
	ErrInvalidState = errors.New("event is not in the expected state")
)

const (
	StatusUpcoming  = "UPCOMING"
	StatusEnded     = "ENDED"
	StatusCancelled = "CANCELLED"
)

// DefaultCapacity applies when an organizer does not set an attendee limit.
const DefaultCapacity = 15

type Event struct {
	ID            string
	Title         string
	OrganizerID   string
	Latitude      float64
	Longitude     float64
	StartTime     time.Time
	EndTime       time.Time
	Capacity      int
	Status        string
	AttendeeCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Summary is the discovery read model: the event plus its live approved
// count and minimal organizer identity.
type Summary struct {
	Event
	OrganizerName string
}

type CreateParams struct {
	ID          string
	Title       string
	OrganizerID string
	Latitude    float64
	Longitude   float64
	StartTime   time.Time
	EndTime     time.Time
	Capacity    int
}

type Point struct {
	Latitude  float64
	Longitude float64
}

type Filters struct {
	Status       string
	Center       *Point
	RadiusMeters float64
}

type Pagination struct {
	Limit int
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	// GetSummary returns the event with a live approved count and organizer name.
	GetSummary(ctx context.Context, id string) (*Summary, error)
	// List returns summaries matching the filters ordered by start time
	// ascending; the approved count is recomputed, never the cached column.
	List(ctx context.Context, filters Filters, pagination Pagination) ([]Summary, error)
	// UpdateStatus flips the lifecycle status only when the event currently
	// has fromStatus; reports whether a row changed.
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error)
	// MarkEnded transitions UPCOMING events whose end time has passed to
	// ENDED and returns the number of rows changed.
	MarkEnded(ctx context.Context, now time.Time) (int64, error)
}
