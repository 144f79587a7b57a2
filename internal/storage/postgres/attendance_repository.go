package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/puddingmeetup/server/internal/domain/attendance"
)

type AttendanceRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *AttendanceRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *AttendanceRepository) GetEvent(ctx context.Context, eventID string) (*attendance.AdmissionEvent, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, organizer_id, capacity, status
  FROM events
 WHERE id = $1
`, eventID)

	var event attendance.AdmissionEvent
	if err := row.Scan(&event.ID, &event.OrganizerID, &event.Capacity, &event.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrEventNotFound
		}
		return nil, fmt.Errorf("get admission event: %w", err)
	}
	return &event, nil
}

func (r *AttendanceRepository) Find(ctx context.Context, eventID, userID string) (*attendance.Request, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, event_id, user_id, status, message, rejection_reason, requested_at, responded_at
  FROM attendance_requests
 WHERE event_id = $1 AND user_id = $2
`, eventID, userID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance request: %w", err)
	}
	return request, nil
}

func (r *AttendanceRepository) GetByID(ctx context.Context, requestID string) (*attendance.Request, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, event_id, user_id, status, message, rejection_reason, requested_at, responded_at
  FROM attendance_requests
 WHERE id = $1
`, requestID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get attendance request: %w", err)
	}
	return request, nil
}

func (r *AttendanceRepository) Create(ctx context.Context, request attendance.Request) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO attendance_requests (id, event_id, user_id, status, message, rejection_reason, requested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, request.ID, request.EventID, request.UserID, request.Status, request.Message,
		request.RejectionReason, request.RequestedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.ErrAlreadyRequested
		}
		return fmt.Errorf("insert attendance request: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) ListByEventAndStatus(ctx context.Context, eventID, status string) ([]attendance.RequestWithUser, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT r.id, r.event_id, r.user_id, r.status, r.message, r.rejection_reason, r.requested_at, r.responded_at,
       u.name, u.email
  FROM attendance_requests r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1 AND r.status = $2
 ORDER BY r.requested_at ASC
`, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("list attendance requests: %w", err)
	}
	defer rows.Close()

	items := make([]attendance.RequestWithUser, 0)
	for rows.Next() {
		var item attendance.RequestWithUser
		if err := rows.Scan(
			&item.ID,
			&item.EventID,
			&item.UserID,
			&item.Status,
			&item.Message,
			&item.RejectionReason,
			&item.RequestedAt,
			&item.RespondedAt,
			&item.UserName,
			&item.UserEmail,
		); err != nil {
			return nil, fmt.Errorf("scan attendance request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendance requests: %w", err)
	}
	return items, nil
}

func (r *AttendanceRepository) CountApproved(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FROM attendance_requests WHERE event_id = $1 AND status = 'APPROVED'
`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved requests: %w", err)
	}
	return count, nil
}

// Approve serializes concurrent approvals per event with a row lock on the
// event, recounts approved attendance under that lock, and only then flips
// the request. With K free slots at most K concurrent callers can commit the
// flip; later ones recount at or above capacity and abort.
func (r *AttendanceRepository) Approve(ctx context.Context, eventID, requestID string, respondedAt time.Time) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var capacity int
		err := tx.QueryRow(ctx, `
SELECT capacity FROM events WHERE id = $1 FOR UPDATE
`, eventID).Scan(&capacity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendance.ErrEventNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}

		var status string
		err = tx.QueryRow(ctx, `
SELECT status FROM attendance_requests WHERE id = $1 AND event_id = $2
`, requestID, eventID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendance.ErrRequestNotFound
			}
			return fmt.Errorf("load request: %w", err)
		}
		if status != attendance.StatusPending {
			return attendance.ErrInvalidState
		}

		var approved int
		err = tx.QueryRow(ctx, `
SELECT COUNT(*) FROM attendance_requests WHERE event_id = $1 AND status = 'APPROVED'
`, eventID).Scan(&approved)
		if err != nil {
			return fmt.Errorf("recount approved: %w", err)
		}
		if approved >= capacity {
			return attendance.ErrCapacityExceeded
		}

		_, err = tx.Exec(ctx, `
UPDATE attendance_requests
   SET status = 'APPROVED', responded_at = $2
 WHERE id = $1
`, requestID, respondedAt)
		if err != nil {
			return fmt.Errorf("approve request: %w", err)
		}

		_, err = tx.Exec(ctx, `
UPDATE events SET attendee_count = attendee_count + 1, updated_at = now() WHERE id = $1
`, eventID)
		if err != nil {
			return fmt.Errorf("bump attendee count: %w", err)
		}
		return nil
	})
}

func (r *AttendanceRepository) Reject(ctx context.Context, eventID, requestID string, respondedAt time.Time, reason string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE attendance_requests
   SET status = 'REJECTED', responded_at = $3, rejection_reason = $4
 WHERE id = $1 AND event_id = $2 AND status = 'PENDING'
`, requestID, eventID, respondedAt, reason)
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished request from one already responded to.
		if _, err := r.GetByID(ctx, requestID); err != nil {
			return err
		}
		return attendance.ErrInvalidState
	}
	return nil
}

func (r *AttendanceRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*attendance.Request, error) {
	var request attendance.Request
	if err := row.Scan(
		&request.ID,
		&request.EventID,
		&request.UserID,
		&request.Status,
		&request.Message,
		&request.RejectionReason,
		&request.RequestedAt,
		&request.RespondedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}
