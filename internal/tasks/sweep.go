// Package tasks schedules the timeout sweep through asynq so that only
// one worker runs each tick, however many replicas are deployed.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/service"
)

// TypeSweepTimeouts is the asynq task type of one sweep pass.
const TypeSweepTimeouts = "round:sweep_timeouts"

// Queue is the asynq queue sweep tasks are enqueued on.
const Queue = "rounds"

// Sweeper is the part of the engine a sweep task needs.
type Sweeper interface {
	SweepNow(ctx context.Context) ([]service.Eviction, error)
}

// NewSweepTask builds a sweep task.  Ticks that overlap are collapsed by
// the unique lock, and a failed pass is not retried since the next tick
// picks up the same rows.
func NewSweepTask(interval time.Duration) *asynq.Task {
	return asynq.NewTask(TypeSweepTimeouts, nil,
		asynq.Queue(Queue),
		asynq.MaxRetry(0),
		asynq.Unique(interval),
		asynq.Timeout(interval),
	)
}

// HandleSweep returns the asynq handler for TypeSweepTimeouts.  Partial
// failures are logged by the engine and only reported to asynq as a
// failed task.
func HandleSweep(s Sweeper) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		evictions, err := s.SweepNow(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		log.Debug().Str("module", "tasks").Int("evicted", len(evictions)).Msg("sweep task done")
		return nil
	}
}

// NewMux routes every task type this package defines.
func NewMux(s Sweeper) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSweepTimeouts, HandleSweep(s))
	return mux
}

// RegisterSchedule registers the periodic sweep on scheduler.
func RegisterSchedule(scheduler *asynq.Scheduler, interval time.Duration) (string, error) {
	cronspec := fmt.Sprintf("@every %s", interval)
	id, err := scheduler.Register(cronspec, NewSweepTask(interval))
	if err != nil {
		return "", fmt.Errorf("register %s: %w", TypeSweepTimeouts, err)
	}
	log.Info().Str("module", "tasks").Str("cronspec", cronspec).Str("entry", id).Msg("sweep scheduled")
	return id, nil
}
