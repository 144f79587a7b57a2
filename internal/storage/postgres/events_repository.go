package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/puddingmeetup/server/internal/domain/events"
)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// approvedCountExpr recomputes the approved count from attendance rows; read
// paths never trust the cached attendee_count column.
const approvedCountExpr = `(SELECT COUNT(*) FROM attendance_requests ar WHERE ar.event_id = e.id AND ar.status = 'APPROVED')`

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO events (id, title, organizer_id, latitude, longitude, start_time, end_time, capacity, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'UPCOMING')
RETURNING id, title, organizer_id, latitude, longitude, start_time, end_time, capacity, status, attendee_count, created_at, updated_at
`, params.ID, params.Title, params.OrganizerID, params.Latitude, params.Longitude,
		params.StartTime, params.EndTime, params.Capacity)

	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, title, organizer_id, latitude, longitude, start_time, end_time, capacity, status, attendee_count, created_at, updated_at
  FROM events
 WHERE id = $1
`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetSummary(ctx context.Context, id string) (*events.Summary, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT e.id, e.title, e.organizer_id, e.latitude, e.longitude, e.start_time, e.end_time,
       e.capacity, e.status, `+approvedCountExpr+`, e.created_at, e.updated_at, u.name
  FROM events e
  JOIN users u ON u.id = e.organizer_id
 WHERE e.id = $1
`, id)

	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event summary: %w", err)
	}
	return summary, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) ([]events.Summary, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conditions = append(conditions, "e.status = "+arg(filters.Status))
	}
	if filters.Center != nil {
		// Bounding box first so the (latitude, longitude) index narrows the
		// candidates before the exact haversine cut.
		box := events.BoundingBox(*filters.Center, filters.RadiusMeters)
		conditions = append(conditions,
			"e.latitude BETWEEN "+arg(box.MinLat)+" AND "+arg(box.MaxLat),
			"e.longitude BETWEEN "+arg(box.MinLng)+" AND "+arg(box.MaxLng),
		)

		// Haversine great-circle distance in meters, all in SQL so the
		// limit applies after the radius cut.
		lat := arg(filters.Center.Latitude)
		lng := arg(filters.Center.Longitude)
		distance := fmt.Sprintf(`2 * 6371000 * asin(sqrt(
    pow(sin(radians(e.latitude - %[1]s) / 2), 2) +
    cos(radians(%[1]s)) * cos(radians(e.latitude)) *
    pow(sin(radians(e.longitude - %[2]s) / 2), 2)))`, lat, lng)
		conditions = append(conditions, distance+" <= "+arg(filters.RadiusMeters))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
SELECT e.id, e.title, e.organizer_id, e.latitude, e.longitude, e.start_time, e.end_time,
       e.capacity, e.status, %s, e.created_at, e.updated_at, u.name
  FROM events e
  JOIN users u ON u.id = e.organizer_id
 %s
 ORDER BY e.start_time ASC, e.id ASC
 LIMIT %s
`, approvedCountExpr, where, arg(pagination.Limit))

	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	summaries := make([]events.Summary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event summary: %w", err)
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return summaries, nil
}

func (r *EventRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET status = $3, updated_at = now()
 WHERE id = $1 AND status = $2
`, id, fromStatus, toStatus)
	if err != nil {
		return false, fmt.Errorf("update event status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EventRepository) MarkEnded(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET status = 'ENDED', updated_at = now()
 WHERE status = 'UPCOMING' AND end_time < $1
`, now)
	if err != nil {
		return 0, fmt.Errorf("mark events ended: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.OrganizerID,
		&event.Latitude,
		&event.Longitude,
		&event.StartTime,
		&event.EndTime,
		&event.Capacity,
		&event.Status,
		&event.AttendeeCount,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

func scanSummary(row pgx.Row) (*events.Summary, error) {
	var summary events.Summary
	if err := row.Scan(
		&summary.ID,
		&summary.Title,
		&summary.OrganizerID,
		&summary.Latitude,
		&summary.Longitude,
		&summary.StartTime,
		&summary.EndTime,
		&summary.Capacity,
		&summary.Status,
		&summary.AttendeeCount,
		&summary.CreatedAt,
		&summary.UpdatedAt,
		&summary.OrganizerName,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}
