package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// MySQLStore implements Store on top of the table repositories.  Units
// of work are database transactions; InEvent additionally holds the
// event row lock (SELECT ... FOR UPDATE) until commit.
type MySQLStore struct {
	db           *sqlx.DB
	events       *EventRepo
	participants *ParticipantRepo
	holds        *SlotHoldRepo
	preRes       *PreReservationRepo
	ledger       *LedgerRepo
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore wires every repository to db.
func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{
		db:           db,
		events:       NewEventRepo(db),
		participants: NewParticipantRepo(db),
		holds:        NewSlotHoldRepo(db),
		preRes:       NewPreReservationRepo(db),
		ledger:       NewLedgerRepo(db),
	}
}

// Now reads the database clock so that every timestamp written and
// compared by the engine comes from one source.
func (s *MySQLStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.GetContext(ctx, &now, `SELECT UTC_TIMESTAMP(6)`); err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func (s *MySQLStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	return s.events.Create(ctx, ev)
}

func (s *MySQLStore) GetEvent(ctx context.Context, eventID uint64) (model.Event, error) {
	return s.events.GetByID(ctx, eventID)
}

func (s *MySQLStore) Participants(ctx context.Context, eventID uint64) ([]model.Participant, error) {
	return s.participants.ListByEvent(ctx, eventID)
}

func (s *MySQLStore) Holds(ctx context.Context, eventID uint64) ([]model.Hold, error) {
	return s.holds.ListByEvent(ctx, eventID)
}

func (s *MySQLStore) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Participant, error) {
	return s.participants.PendingBefore(ctx, cutoff, limit)
}

func (s *MySQLStore) PreReservations(ctx context.Context, eventID uint64) ([]model.PreReservation, error) {
	return s.preRes.ListByEvent(ctx, eventID)
}

func (s *MySQLStore) Balance(ctx context.Context, userID uint64) (model.Balance, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *MySQLStore) LedgerHistory(ctx context.Context, userID uint64, kind model.LedgerKind, limit int) ([]model.LedgerEntry, error) {
	return s.ledger.History(ctx, userID, kind, limit)
}

// InTx begins a transaction, runs fn and commits when fn succeeds.
func (s *MySQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&mysqlTx{tx: tx, s: s})
	})
}

// InEvent locks the event row before running fn.
func (s *MySQLStore) InEvent(ctx context.Context, eventID uint64, fn func(EventTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		ev, err := s.events.LockTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		return fn(&mysqlEventTx{mysqlTx: mysqlTx{tx: tx, s: s}, event: ev})
	})
}

func (s *MySQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type mysqlTx struct {
	tx *sqlx.Tx
	s  *MySQLStore
}

func (t *mysqlTx) ApplyLedger(ctx context.Context, userID uint64, kind model.LedgerKind, delta int64, reason string, at time.Time) (model.LedgerEntry, error) {
	return t.s.ledger.ApplyTx(ctx, t.tx, userID, kind, delta, reason, at)
}

func (t *mysqlTx) InsertPreReservation(ctx context.Context, pr *model.PreReservation) error {
	return t.s.preRes.InsertTx(ctx, t.tx, pr)
}

func (t *mysqlTx) DeletePreReservation(ctx context.Context, eventID, userID uint64) (bool, error) {
	return t.s.preRes.DeleteTx(ctx, t.tx, eventID, userID)
}

type mysqlEventTx struct {
	mysqlTx
	event model.Event
}

func (t *mysqlEventTx) Event() model.Event { return t.event }

func (t *mysqlEventTx) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := t.tx.GetContext(ctx, &now, `SELECT UTC_TIMESTAMP(6)`); err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}

func (t *mysqlEventTx) Participants(ctx context.Context) ([]model.Participant, error) {
	return t.s.participants.ListByEventTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlEventTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
	p.EventID = t.event.ID
	return t.s.participants.InsertTx(ctx, t.tx, p)
}

func (t *mysqlEventTx) DeleteParticipant(ctx context.Context, userID uint64) (bool, error) {
	return t.s.participants.DeleteTx(ctx, t.tx, t.event.ID, userID)
}

func (t *mysqlEventTx) DeletePendingBefore(ctx context.Context, userID uint64, cutoff time.Time) (bool, error) {
	return t.s.participants.DeletePendingBeforeTx(ctx, t.tx, t.event.ID, userID, cutoff)
}

func (t *mysqlEventTx) SetPaymentStatus(ctx context.Context, userID uint64, status model.PaymentStatus) (bool, error) {
	return t.s.participants.SetPaymentStatusTx(ctx, t.tx, t.event.ID, userID, status)
}

func (t *mysqlEventTx) Holds(ctx context.Context) ([]model.Hold, error) {
	return t.s.holds.ListByEventTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlEventTx) InsertHold(ctx context.Context, h *model.Hold) error {
	h.EventID = t.event.ID
	return t.s.holds.CreateTx(ctx, t.tx, h)
}

func (t *mysqlEventTx) DeleteHold(ctx context.Context, holdID uint64) error {
	return t.s.holds.DeleteTx(ctx, t.tx, holdID)
}

func (t *mysqlEventTx) MoveHold(ctx context.Context, holdID uint64, room, slot int) error {
	return t.s.holds.MoveTx(ctx, t.tx, holdID, room, slot)
}

func (t *mysqlEventTx) PurgeExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	return t.s.holds.ExpireHoldsTx(ctx, t.tx, t.event.ID, now)
}

func (t *mysqlEventTx) BumpVersion(ctx context.Context) error {
	return t.s.events.BumpVersionTx(ctx, t.tx, t.event.ID)
}
