package leaderboard

import (
	"context"
	"time"
)

// Row is one user's raw activity tally as aggregated by storage. The stored
// order is points descending with user ID ascending as tie-break, so equal
// scores rank the longer-standing account first.
type Row struct {
	UserID        string
	Name          string
	EventsCreated int
	EventsJoined  int
	Points        int
}

// Repository aggregates user activity. A nil since means all-time; otherwise
// only events created after since and approved requests made after since
// count toward the tally. Attendance is windowed on the request's creation
// time, not on when the organizer approved it.
type Repository interface {
	TopUsers(ctx context.Context, since *time.Time, limit int) ([]Row, error)
}
