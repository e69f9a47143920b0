package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

const eventColumns = `id, host_user_id, title, capacity, starts_at, roster_version, created_at`

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event and populates the generated ID and the
// DB-default fields (roster_version, created_at) on ev.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	if ev.Capacity < 1 {
		return ErrInvalidCapacity
	}
	const q = `INSERT INTO events (host_user_id, title, capacity, starts_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, ev.HostUserID, ev.Title, ev.Capacity, ev.StartsAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate defaults
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ev = created
	return nil
}

// GetByID returns the event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	var ev model.Event
	err := r.db.GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// LockTx reads the event with SELECT ... FOR UPDATE.  Every unit of
// work that changes the event's seats takes this lock first, so
// capacity checks and inserts on one event never interleave.
func (r *EventRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Event, error) {
	var ev model.Event
	err := tx.GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// BumpVersionTx increments roster_version inside the caller's transaction.
func (r *EventRepo) BumpVersionTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE events SET roster_version = roster_version + 1 WHERE id = ?`, id)
	return err
}
