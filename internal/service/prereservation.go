package service

import (
	"context"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
)

const (
	preReservationApplied   = "pre-reservation applied"
	preReservationCancelled = "pre-reservation cancelled"
)

// ApplyPreReservation registers userID's interest in an event and credits
// the manner score.  The pool has no capacity limit.
func (e *Engine) ApplyPreReservation(ctx context.Context, eventID, userID uint64) (model.PreReservation, model.LedgerEntry, error) {
	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		return model.PreReservation{}, model.LedgerEntry{}, err
	}
	now, err := e.store.Now(ctx)
	if err != nil {
		return model.PreReservation{}, model.LedgerEntry{}, err
	}
	pr := model.PreReservation{EventID: eventID, UserID: userID, CreatedAt: now}
	var entry model.LedgerEntry
	err = e.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertPreReservation(ctx, &pr); err != nil {
			return err
		}
		entry, err = tx.ApplyLedger(ctx, userID, model.LedgerManner, e.policy.PreReservationReward, preReservationApplied, now)
		return err
	})
	if err != nil {
		return model.PreReservation{}, model.LedgerEntry{}, err
	}
	return pr, entry, nil
}

// CancelPreReservation withdraws the interest and debits exactly what
// ApplyPreReservation credited.
func (e *Engine) CancelPreReservation(ctx context.Context, eventID, userID uint64) (model.LedgerEntry, error) {
	now, err := e.store.Now(ctx)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	var entry model.LedgerEntry
	err = e.store.InTx(ctx, func(tx repository.Tx) error {
		removed, err := tx.DeletePreReservation(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return repository.ErrNotReserved
		}
		entry, err = tx.ApplyLedger(ctx, userID, model.LedgerManner, -e.policy.PreReservationReward, preReservationCancelled, now)
		return err
	})
	return entry, err
}

// ListPreReservations returns the event's pool, oldest first.
func (e *Engine) ListPreReservations(ctx context.Context, eventID uint64) ([]model.PreReservation, error) {
	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return e.store.PreReservations(ctx, eventID)
}
