package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryer abstracts pool-or-transaction execution so every repository can run
// both standalone and inside a transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository bundles all PostgreSQL-backed repositories over one pool.
type Repository struct {
	pool *pgxpool.Pool

	users       *UserRepository
	events      *EventRepository
	attendance  *AttendanceRepository
	leaderboard *LeaderboardRepository
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{
		pool:        pool,
		users:       &UserRepository{pool: pool},
		events:      &EventRepository{pool: pool},
		attendance:  &AttendanceRepository{pool: pool},
		leaderboard: &LeaderboardRepository{pool: pool},
	}, nil
}

func (r *Repository) Users() *UserRepository { return r.users }

func (r *Repository) Events() *EventRepository { return r.events }

func (r *Repository) Attendance() *AttendanceRepository { return r.attendance }

func (r *Repository) Leaderboard() *LeaderboardRepository { return r.leaderboard }

// WithTx begins a transaction and runs fn against transaction-scoped
// repositories. The transaction commits when fn returns nil and rolls back
// on error.
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	scoped := &Repository{
		pool:        r.pool,
		users:       &UserRepository{pool: r.pool, tx: tx},
		events:      &EventRepository{pool: r.pool, tx: tx},
		attendance:  &AttendanceRepository{pool: r.pool, tx: tx},
		leaderboard: &LeaderboardRepository{pool: r.pool, tx: tx},
	}
	if err := fn(scoped); err != nil {
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

// NewPool opens a pgx pool sized to the given connection limits and verifies
// connectivity before returning it. Non-positive limits keep the pgxpool
// defaults.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	if maxConns > 0 {
		config.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		config.MinConns = int32(minConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping reports database reachability for readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
