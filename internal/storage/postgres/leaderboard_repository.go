package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/puddingmeetup/server/internal/domain/leaderboard"
)

type LeaderboardRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *LeaderboardRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// TopUsers tallies hosting and approved attendance per user in one aggregate
// pass. A nil since widens both windows to all time; the window is applied to
// event creation time for hosting and request time for attendance, so a late
// approval does not move an old request into the window.
func (r *LeaderboardRepository) TopUsers(ctx context.Context, since *time.Time, limit int) ([]leaderboard.Row, error) {
	var cutoff time.Time
	if since != nil {
		cutoff = *since
	}

	rows, err := r.queryer().Query(ctx, `
SELECT u.id,
       u.name,
       COALESCE(c.created, 0) AS events_created,
       COALESCE(j.joined, 0)  AS events_joined,
       COALESCE(c.created, 0) * $1 + COALESCE(j.joined, 0) * $2 AS points
  FROM users u
  LEFT JOIN (
        SELECT organizer_id, COUNT(*) AS created
          FROM events
         WHERE $3 OR created_at > $4
         GROUP BY organizer_id
       ) c ON c.organizer_id = u.id
  LEFT JOIN (
        SELECT user_id, COUNT(*) AS joined
          FROM attendance_requests
         WHERE status = 'APPROVED' AND ($3 OR requested_at > $4)
         GROUP BY user_id
       ) j ON j.user_id = u.id
 ORDER BY points DESC, u.id ASC
 LIMIT $5
`, leaderboard.PointsPerEventCreated, leaderboard.PointsPerEventJoined, since == nil, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate user activity: %w", err)
	}
	defer rows.Close()

	results := make([]leaderboard.Row, 0, limit)
	for rows.Next() {
		var row leaderboard.Row
		if err := rows.Scan(&row.UserID, &row.Name, &row.EventsCreated, &row.EventsJoined, &row.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate user activity: %w", err)
	}
	return results, nil
}
