package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/pkg/logger"
	"go.uber.org/fx"
)

const sweepTimeout = 5 * time.Minute

type Opts struct {
	fx.In

	StoryRepo story.Repository
	Logger    logger.Logger
}

// Janitor hard-deletes stories past their 24h window. Reads already
// filter on expires_at, so the sweep only reclaims space and keeps the
// viewer lists from growing without bound.
type Janitor struct {
	StoryRepo story.Repository
	Logger    logger.Logger
}

func New(opts Opts) *Janitor {
	return &Janitor{
		StoryRepo: opts.StoryRepo,
		Logger:    opts.Logger.WithComponent("Janitor"),
	}
}

// ScheduleExpirySweep runs an hourly job that purges expired stories and
// their view rows.
func (j *Janitor) ScheduleExpirySweep(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create expiry sweep scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				j.Logger.Info("Context cancelled, stopping expiry sweep job")
				return
			}

			sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
			defer cancel()

			rowsDeleted, err := j.StoryRepo.DeleteExpired(sweepCtx, time.Now())
			if err != nil {
				j.Logger.Error("Failed to sweep expired stories", "error", err)
				return
			}

			if rowsDeleted > 0 {
				j.Logger.Info("Expiry sweep completed", "rows_deleted", rowsDeleted)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		j.Logger.Info("Stopping expiry sweep scheduler")
		if err := scheduler.Shutdown(); err != nil {
			j.Logger.Error("Failed to shut down expiry sweep scheduler", "error", err)
		}
	}()

	return nil
}
