package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// PointsPerEventCreated and PointsPerEventJoined weigh hosting above
	// attending when scoring activity.
	PointsPerEventCreated = 50
	PointsPerEventJoined  = 10

	// DefaultLimit caps the board at the top twenty users.
	DefaultLimit = 20
	maxLimit     = 100

	weekWindow = 7 * 24 * time.Hour
)

const (
	PeriodAll  = "all"
	PeriodWeek = "week"
)

// Entry is one ranked leaderboard line. Rank is dense: users with equal
// points share a rank and the next distinct score takes rank+1. Badge is
// set for the top three ranks only.
type Entry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	EventsCreated int    `json:"eventsCreated"`
	EventsJoined  int    `json:"eventsJoined"`
	Points        int    `json:"points"`
	Badge         string `json:"badge,omitempty"`
}

var badges = map[int]string{
	1: "crown",
	2: "gold",
	3: "silver",
}

type PeriodError struct {
	Value string
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("invalid leaderboard period %q", e.Value)
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "leaderboard").Logger(),
		now:    time.Now,
	}
}

// Compute builds the ranked board for the given period. An empty period
// means all-time; "week" restricts the tally to the trailing seven days.
// A limit of zero or less falls back to DefaultLimit.
func (s *Service) Compute(ctx context.Context, period string, limit int) ([]Entry, error) {
	var since *time.Time
	switch period {
	case "", PeriodAll:
	case PeriodWeek:
		cutoff := s.now().Add(-weekWindow)
		since = &cutoff
	default:
		return nil, &PeriodError{Value: period}
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.repo.TopUsers(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	rank := 0
	prevPoints := -1
	for _, row := range rows {
		if row.Points != prevPoints {
			rank++
			prevPoints = row.Points
		}
		entries = append(entries, Entry{
			Rank:          rank,
			UserID:        row.UserID,
			Name:          row.Name,
			EventsCreated: row.EventsCreated,
			EventsJoined:  row.EventsJoined,
			Points:        row.Points,
			Badge:         badges[rank],
		})
	}
	return entries, nil
}
