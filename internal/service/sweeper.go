package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
)

// TimeoutReason is written on both penalty entries of an eviction.
const TimeoutReason = "payment deadline missed"

// Eviction reports one participant removed by the sweep together with
// the penalties applied and the balances right after them.
type Eviction struct {
	UserID        uint64 `json:"user_id"`
	EventID       uint64 `json:"event_id"`
	PointsDelta   int64  `json:"points_delta"`
	MannerDelta   int64  `json:"manner_delta"`
	PointsBalance int64  `json:"points_balance"`
	MannerBalance int64  `json:"manner_balance"`
}

// RowError is the failure of one eviction.  The row stays pending and is
// picked up again by the next pass.
type RowError struct {
	UserID  uint64
	EventID uint64
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("evict user %d from event %d: %v", e.UserID, e.EventID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// SweepError collects the rows that failed in one pass.
type SweepError struct {
	Rows []*RowError
}

func (e *SweepError) Error() string {
	msgs := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		msgs = append(msgs, r.Error())
	}
	return fmt.Sprintf("sweep: %d evictions failed: %s", len(e.Rows), strings.Join(msgs, "; "))
}

func (e *SweepError) Unwrap() []error {
	errs := make([]error, 0, len(e.Rows))
	for _, r := range e.Rows {
		errs = append(errs, r)
	}
	return errs
}

type sweepResult struct {
	eviction *Eviction
	err      *RowError
}

// SweepNow runs Sweep at the store's current time.
func (e *Engine) SweepNow(ctx context.Context) ([]Eviction, error) {
	now, err := e.store.Now(ctx)
	if err != nil {
		return nil, err
	}
	return e.Sweep(ctx, now)
}

// Sweep evicts every unpaid participant that joined more than
// PaymentDeadline before now and debits both ledgers once per eviction.
//
// The candidate list is a snapshot; each row is then evicted in its own
// unit of work with a conditional delete, so a row that was released,
// paid or swept in the meantime yields nothing.  A failing row does not
// stop the others: successful evictions are returned alongside a
// *SweepError.
func (e *Engine) Sweep(ctx context.Context, now time.Time) ([]Eviction, error) {
	now = now.UTC()
	cutoff := now.Add(-e.policy.PaymentDeadline)
	candidates, err := e.store.PendingBefore(ctx, cutoff, e.policy.SweepBatch)
	if err != nil {
		return nil, fmt.Errorf("sweep snapshot: %w", err)
	}
	logger := log.With().Str("module", "service.sweeper").Time("cutoff", cutoff).Logger()
	if len(candidates) == 0 {
		logger.Debug().Msg("nothing to sweep")
		return []Eviction{}, nil
	}

	p := pool.NewWithResults[sweepResult]().WithMaxGoroutines(e.policy.SweepConcurrency)
	for _, c := range candidates {
		c := c
		p.Go(func() sweepResult {
			ev, err := e.evict(ctx, c, cutoff, now)
			if err != nil {
				logger.Error().Err(err).Uint64("event_id", c.EventID).Uint64("user_id", c.UserID).Msg("eviction failed")
				return sweepResult{err: &RowError{UserID: c.UserID, EventID: c.EventID, Err: err}}
			}
			return sweepResult{eviction: ev}
		})
	}

	evictions := []Eviction{}
	var failed []*RowError
	for _, r := range p.Wait() {
		switch {
		case r.err != nil:
			failed = append(failed, r.err)
		case r.eviction != nil:
			evictions = append(evictions, *r.eviction)
		}
	}
	for _, ev := range evictions {
		e.notify(ctx, model.Notification{
			Kind: model.NotifyEvicted, EventID: ev.EventID, UserID: ev.UserID, CreatedAt: now,
			Detail: fmt.Sprintf("%s: points %d, manner %d", TimeoutReason, ev.PointsDelta, ev.MannerDelta),
		})
	}
	logger.Info().Int("candidates", len(candidates)).Int("evicted", len(evictions)).Int("failed", len(failed)).Msg("sweep finished")
	if len(failed) > 0 {
		return evictions, &SweepError{Rows: failed}
	}
	return evictions, nil
}

// evict removes one candidate and applies the penalties.  It returns a
// nil Eviction when the row no longer qualifies.
func (e *Engine) evict(ctx context.Context, c model.Participant, cutoff, now time.Time) (*Eviction, error) {
	var out *Eviction
	err := e.store.InEvent(ctx, c.EventID, func(tx repository.EventTx) error {
		removed, err := tx.DeletePendingBefore(ctx, c.UserID, cutoff)
		if err != nil || !removed {
			return err
		}
		points, err := tx.ApplyLedger(ctx, c.UserID, model.LedgerPoints, -e.policy.TimeoutPointsPenalty, TimeoutReason, now)
		if err != nil {
			return fmt.Errorf("points penalty: %w", err)
		}
		manner, err := tx.ApplyLedger(ctx, c.UserID, model.LedgerManner, -e.policy.TimeoutMannerPenalty, TimeoutReason, now)
		if err != nil {
			return fmt.Errorf("manner penalty: %w", err)
		}
		if err := tx.BumpVersion(ctx); err != nil {
			return err
		}
		out = &Eviction{
			UserID:        c.UserID,
			EventID:       c.EventID,
			PointsDelta:   points.Amount,
			MannerDelta:   manner.Amount,
			PointsBalance: points.BalanceAfter,
			MannerBalance: manner.BalanceAfter,
		}
		return nil
	})
	if errors.Is(err, repository.ErrEventNotFound) {
		// The event is gone and its seats with it.
		return nil, nil
	}
	return out, err
}
