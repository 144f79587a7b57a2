package jobs

import (
	"context"
	"time"

	"github.com/puddingmeetup/server/internal/domain/events"
	"github.com/puddingmeetup/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// LifecycleSweepArgs triggers a scan for UPCOMING events whose end time has
// passed.
type LifecycleSweepArgs struct{}

func (LifecycleSweepArgs) Kind() string { return JobKindLifecycleSweep }

type LifecycleSweepWorker struct {
	river.WorkerDefaults[LifecycleSweepArgs]

	repo   events.Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewLifecycleSweepWorker(repo events.Repository, logger zerolog.Logger) *LifecycleSweepWorker {
	return &LifecycleSweepWorker{
		repo:   repo,
		logger: logger.With().Str("job", JobKindLifecycleSweep).Logger(),
		now:    time.Now,
	}
}

func (w *LifecycleSweepWorker) Work(ctx context.Context, job *river.Job[LifecycleSweepArgs]) error {
	ended, err := w.repo.MarkEnded(ctx, w.now())
	if err != nil {
		return err
	}

	if ended > 0 {
		metrics.EventsEndedTotal.Add(float64(ended))
		w.logger.Info().Int64("ended", ended).Msg("events transitioned to ENDED")
	}
	return nil
}

// RegisterWorkers attaches all workers to the given registry.
func RegisterWorkers(workers *river.Workers, repo events.Repository, logger zerolog.Logger) {
	river.AddWorker(workers, NewLifecycleSweepWorker(repo, logger))
}
