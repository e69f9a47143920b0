package repository

import (
	"context"
	"time"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// Store is everything the engine needs from persistence.  Reads outside
// a unit of work are point-in-time snapshots; every mutation runs in
// InTx or InEvent.  Implementations must take timestamps from Now so
// that writers and readers of expiry share one clock.
type Store interface {
	// Now returns the store's own clock in UTC.
	Now(ctx context.Context) (time.Time, error)

	CreateEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, eventID uint64) (model.Event, error)
	// Participants returns the event's participants ordered by
	// (joined_at, id).
	Participants(ctx context.Context, eventID uint64) ([]model.Participant, error)
	// Holds returns every hold row of the event, expired ones included.
	Holds(ctx context.Context, eventID uint64) ([]model.Hold, error)
	// PendingBefore lists unpaid participants of any event that joined
	// strictly before cutoff, oldest first.
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Participant, error)
	PreReservations(ctx context.Context, eventID uint64) ([]model.PreReservation, error)
	Balance(ctx context.Context, userID uint64) (model.Balance, error)
	LedgerHistory(ctx context.Context, userID uint64, kind model.LedgerKind, limit int) ([]model.LedgerEntry, error)

	// InTx runs fn in one unit of work.  It commits when fn returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error
	// InEvent is InTx with the event locked for the duration of fn:
	// units of work on the same event are serialized.  It returns
	// ErrEventNotFound when the event does not exist.
	InEvent(ctx context.Context, eventID uint64, fn func(EventTx) error) error
}

// Tx is a unit of work that is not bound to one event.
type Tx interface {
	// ApplyLedger adds delta to the user's balance of kind, computed
	// from the latest row at write time, and appends one entry carrying
	// the resulting balance.
	ApplyLedger(ctx context.Context, userID uint64, kind model.LedgerKind, delta int64, reason string, at time.Time) (model.LedgerEntry, error)
	// InsertPreReservation returns ErrAlreadyReserved on a duplicate.
	InsertPreReservation(ctx context.Context, pr *model.PreReservation) error
	DeletePreReservation(ctx context.Context, eventID, userID uint64) (bool, error)
}

// EventTx is a unit of work holding the lock of one event.
type EventTx interface {
	Tx

	// Event is the locked event row as read when the unit started.
	Event() model.Event
	// Now reads the store clock after the lock is held, so timestamps
	// taken here follow the commit order of the event's units.
	Now(ctx context.Context) (time.Time, error)
	Participants(ctx context.Context) ([]model.Participant, error)
	// InsertParticipant assigns ID and returns ErrAlreadyJoined when the
	// user already has a seat.
	InsertParticipant(ctx context.Context, p *model.Participant) error
	DeleteParticipant(ctx context.Context, userID uint64) (bool, error)
	// DeletePendingBefore deletes the user's seat only if it is still
	// unpaid and joined strictly before cutoff.
	DeletePendingBefore(ctx context.Context, userID uint64, cutoff time.Time) (bool, error)
	SetPaymentStatus(ctx context.Context, userID uint64, status model.PaymentStatus) (bool, error)

	Holds(ctx context.Context) ([]model.Hold, error)
	// InsertHold returns ErrHoldConflict when the coordinate has a row.
	InsertHold(ctx context.Context, h *model.Hold) error
	DeleteHold(ctx context.Context, holdID uint64) error
	MoveHold(ctx context.Context, holdID uint64, room, slot int) error
	// PurgeExpiredHolds deletes holds with expires_at <= now.
	PurgeExpiredHolds(ctx context.Context, now time.Time) (int64, error)

	// BumpVersion increments the event's roster version.
	BumpVersion(ctx context.Context) error
}
