package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

const holdColumns = `id, event_id, room_no, slot_index, holder_user_id, invitee_user_id, hold_token, created_at, expires_at`

const holdTokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// SlotHoldRepo provides data access to the slot_holds table.  A row is
// keyed by (event_id, room_no, slot_index); whether it is live is
// decided by comparing expires_at with the store clock, never by a
// scheduled job.
type SlotHoldRepo struct {
	db *sqlx.DB
}

// NewSlotHoldRepo returns a new SlotHoldRepo bound to the provided database.
func NewSlotHoldRepo(db *sqlx.DB) *SlotHoldRepo { return &SlotHoldRepo{db: db} }

// NewHoldToken returns an opaque token for the hold_token column.
func NewHoldToken() (string, error) {
	return gonanoid.Generate(holdTokenAlphabet, 24)
}

// ListByEvent returns every hold row for the event.
func (r *SlotHoldRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Hold, error) {
	out := []model.Hold{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+holdColumns+` FROM slot_holds WHERE event_id = ? ORDER BY room_no, slot_index`, eventID)
	return out, err
}

// ListByEventTx is ListByEvent inside the caller's transaction.
func (r *SlotHoldRepo) ListByEventTx(ctx context.Context, tx *sqlx.Tx, eventID uint64) ([]model.Hold, error) {
	out := []model.Hold{}
	err := tx.SelectContext(ctx, &out,
		`SELECT `+holdColumns+` FROM slot_holds WHERE event_id = ? ORDER BY room_no, slot_index`, eventID)
	return out, err
}

// CreateTx inserts h and sets its ID.  The unique key on the coordinate
// turns a concurrent second hold into ErrHoldConflict.
func (r *SlotHoldRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, h *model.Hold) error {
	const q = `INSERT INTO slot_holds (event_id, room_no, slot_index, holder_user_id, invitee_user_id, hold_token, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, h.EventID, h.RoomNo, h.SlotIndex, h.HolderUserID, h.InviteeUserID,
		h.Token, h.CreatedAt.UTC(), h.ExpiresAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrHoldConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// DeleteTx removes one hold.
func (r *SlotHoldRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, holdID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM slot_holds WHERE id = ?`, holdID)
	return err
}

// MoveTx re-points a hold to another coordinate of the same event.
func (r *SlotHoldRepo) MoveTx(ctx context.Context, tx *sqlx.Tx, holdID uint64, room, slot int) error {
	_, err := tx.ExecContext(ctx, `UPDATE slot_holds SET room_no = ?, slot_index = ? WHERE id = ?`, room, slot, holdID)
	if isDuplicateKey(err) {
		return ErrHoldConflict
	}
	return err
}

// ExpireHoldsTx removes all holds for the event whose expires_at is at
// or before now.  Expired rows are already treated as absent by every
// read; deleting them only bounds storage.
func (r *SlotHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sqlx.Tx, eventID uint64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM slot_holds WHERE event_id = ? AND expires_at <= ?`, eventID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
