package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

const participantColumns = `id, event_id, user_id, joined_at, payment_status`

// ParticipantRepo provides data access to the participants table.  One
// row is one occupied seat; (event_id, user_id) is unique.  All
// timestamps are UTC and come from the store clock.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo returns a new ParticipantRepo bound to the given database.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// ListByEvent returns the event's participants in join order.
func (r *ParticipantRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Participant, error) {
	out := []model.Participant{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? ORDER BY joined_at, id`, eventID)
	return out, err
}

// ListByEventTx is ListByEvent inside the caller's transaction.
func (r *ParticipantRepo) ListByEventTx(ctx context.Context, tx *sqlx.Tx, eventID uint64) ([]model.Participant, error) {
	out := []model.Participant{}
	err := tx.SelectContext(ctx, &out,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? ORDER BY joined_at, id`, eventID)
	return out, err
}

// PendingBefore lists unpaid participants across all events whose
// joined_at is strictly before cutoff.
func (r *ParticipantRepo) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Participant, error) {
	out := []model.Participant{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+participantColumns+` FROM participants
		 WHERE payment_status = ? AND joined_at < ?
		 ORDER BY joined_at, id LIMIT ?`,
		model.PaymentPending, cutoff.UTC(), limit)
	return out, err
}

// InsertTx inserts p and sets its ID.  A duplicate (event_id, user_id)
// yields ErrAlreadyJoined.
func (r *ParticipantRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, p *model.Participant) error {
	const q = `INSERT INTO participants (event_id, user_id, joined_at, payment_status) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.EventID, p.UserID, p.JoinedAt.UTC(), p.PaymentStatus)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyJoined
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// DeleteTx removes the user's seat.  It reports whether a row existed.
func (r *ParticipantRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, eventID, userID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE event_id = ? AND user_id = ?`, eventID, userID)
	return affected(res, err)
}

// DeletePendingBeforeTx removes the seat only while it is still unpaid
// and past the cutoff, so a sweep racing a payment or a leave is a
// no-op.
func (r *ParticipantRepo) DeletePendingBeforeTx(ctx context.Context, tx *sqlx.Tx, eventID, userID uint64, cutoff time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM participants WHERE event_id = ? AND user_id = ? AND payment_status = ? AND joined_at < ?`,
		eventID, userID, model.PaymentPending, cutoff.UTC())
	return affected(res, err)
}

// SetPaymentStatusTx updates the payment flag.
func (r *ParticipantRepo) SetPaymentStatusTx(ctx context.Context, tx *sqlx.Tx, eventID, userID uint64, status model.PaymentStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE participants SET payment_status = ? WHERE event_id = ? AND user_id = ?`, status, eventID, userID)
	if err != nil {
		return false, err
	}
	// MySQL reports 0 affected rows when the value is unchanged, so
	// check existence separately.
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	var one int
	err = tx.GetContext(ctx, &one, `SELECT COUNT(*) FROM participants WHERE event_id = ? AND user_id = ?`, eventID, userID)
	return one > 0, err
}
