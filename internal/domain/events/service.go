package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/puddingmeetup/server/internal/domain/ids"
	"github.com/puddingmeetup/server/internal/sanitize"
	"github.com/rs/zerolog"
)

const (
	// DefaultRadiusMeters matches the discovery default of 100 km.
	DefaultRadiusMeters = 100000
	// MaxRadiusMeters bounds how wide a single radius query may reach.
	MaxRadiusMeters = 500000

	defaultLimit = 50
	maxLimit     = 200

	// MaxCapacity bounds the attendee limit of a single gathering.
	MaxCapacity = 10000
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type CreateInput struct {
	Title     string
	Latitude  float64
	Longitude float64
	StartTime time.Time
	EndTime   time.Time
	Capacity  int
}

// Create publishes a new UPCOMING event owned by organizerID. Capacity
// defaults to DefaultCapacity when unset and is fixed for the event's
// lifetime; there is no resize operation.
func (s *Service) Create(ctx context.Context, organizerID string, input CreateInput) (*Event, error) {
	title := sanitize.Text(input.Title)
	if title == "" {
		return nil, FilterError{Field: "title", Message: "is required"}
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		return nil, FilterError{Field: "latitude", Message: "must be between -90 and 90"}
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return nil, FilterError{Field: "longitude", Message: "must be between -180 and 180"}
	}
	if input.StartTime.IsZero() {
		return nil, FilterError{Field: "startTime", Message: "is required"}
	}
	if input.EndTime.IsZero() {
		return nil, FilterError{Field: "endTime", Message: "is required"}
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, FilterError{Field: "endTime", Message: "must be after startTime"}
	}

	capacity := input.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 1 || capacity > MaxCapacity {
		return nil, FilterError{Field: "capacity", Message: fmt.Sprintf("must be between 1 and %d", MaxCapacity)}
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint event id: %w", err)
	}

	event, err := s.repo.Create(ctx, CreateParams{
		ID:          id,
		Title:       title,
		OrganizerID: organizerID,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Capacity:    capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("organizer_id", organizerID).
		Int("capacity", capacity).
		Msg("event created")
	return event, nil
}

// Get returns the discovery read model for a single event.
func (s *Service) Get(ctx context.Context, id string) (*Summary, error) {
	return s.repo.GetSummary(ctx, id)
}

// List runs the discovery query: status filter, optional radius restriction,
// start time ascending, truncated to the limit.
func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) ([]Summary, error) {
	if pagination.Limit <= 0 {
		pagination.Limit = defaultLimit
	}
	return s.repo.List(ctx, filters, pagination)
}

// Cancel transitions an UPCOMING event to CANCELLED. Organizer only.
func (s *Service) Cancel(ctx context.Context, id, callerID string) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event.OrganizerID != callerID {
		return ErrForbidden
	}

	changed, err := s.repo.UpdateStatus(ctx, id, StatusUpcoming, StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	if !changed {
		return ErrInvalidState
	}

	s.logger.Info().Str("event_id", id).Msg("event cancelled")
	return nil
}

// ParseFilters parses discovery query parameters. lat and lng must be given
// together; radius without a center point is rejected.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{Status: StatusUpcoming}
	pagination := Pagination{Limit: defaultLimit}

	if status := strings.TrimSpace(values.Get("status")); status != "" {
		status = strings.ToUpper(status)
		switch status {
		case StatusUpcoming, StatusEnded, StatusCancelled:
			filters.Status = status
		default:
			return filters, pagination, FilterError{Field: "status", Message: "unsupported lifecycle status"}
		}
	}

	rawLat := strings.TrimSpace(values.Get("lat"))
	rawLng := strings.TrimSpace(values.Get("lng"))
	if (rawLat == "") != (rawLng == "") {
		return filters, pagination, FilterError{Field: "lat", Message: "lat and lng must be provided together"}
	}
	if rawLat != "" {
		lat, err := strconv.ParseFloat(rawLat, 64)
		if err != nil || lat < -90 || lat > 90 {
			return filters, pagination, FilterError{Field: "lat", Message: "must be a latitude between -90 and 90"}
		}
		lng, err := strconv.ParseFloat(rawLng, 64)
		if err != nil || lng < -180 || lng > 180 {
			return filters, pagination, FilterError{Field: "lng", Message: "must be a longitude between -180 and 180"}
		}
		filters.Center = &Point{Latitude: lat, Longitude: lng}
		filters.RadiusMeters = DefaultRadiusMeters
	}

	if rawRadius := strings.TrimSpace(values.Get("radius")); rawRadius != "" {
		if filters.Center == nil {
			return filters, pagination, FilterError{Field: "radius", Message: "requires lat and lng"}
		}
		radius, err := strconv.ParseFloat(rawRadius, 64)
		if err != nil || radius <= 0 || radius > MaxRadiusMeters {
			return filters, pagination, FilterError{Field: "radius", Message: fmt.Sprintf("must be between 1 and %d meters", MaxRadiusMeters)}
		}
		filters.RadiusMeters = radius
	}

	if rawLimit := strings.TrimSpace(values.Get("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			return filters, pagination, FilterError{Field: "limit", Message: "must be a number"}
		}
		if limit < 1 || limit > maxLimit {
			return filters, pagination, FilterError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxLimit)}
		}
		pagination.Limit = limit
	}

	return filters, pagination, nil
}
