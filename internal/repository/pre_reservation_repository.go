package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// PreReservationRepo provides data access to pre_reservations, the
// capacity-unbounded interest list.
type PreReservationRepo struct {
	db *sqlx.DB
}

// NewPreReservationRepo returns a new PreReservationRepo bound to the given database.
func NewPreReservationRepo(db *sqlx.DB) *PreReservationRepo { return &PreReservationRepo{db: db} }

// ListByEvent returns the interest list in application order.
func (r *PreReservationRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.PreReservation, error) {
	out := []model.PreReservation{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, event_id, user_id, created_at FROM pre_reservations WHERE event_id = ? ORDER BY created_at, id`, eventID)
	return out, err
}

// InsertTx inserts pr; a duplicate (event_id, user_id) yields ErrAlreadyReserved.
func (r *PreReservationRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, pr *model.PreReservation) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pre_reservations (event_id, user_id, created_at) VALUES (?, ?, ?)`,
		pr.EventID, pr.UserID, pr.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyReserved
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	pr.ID = uint64(id)
	return nil
}

// DeleteTx removes the user's pre-reservation and reports whether one existed.
func (r *PreReservationRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, eventID, userID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM pre_reservations WHERE event_id = ? AND user_id = ?`, eventID, userID)
	return affected(res, err)
}

// affected converts an Exec result into "did a row change".
func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
