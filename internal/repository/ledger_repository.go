package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// LedgerRepo owns user_balances and the two append-only ledgers
// (point_ledger, manner_ledger).  Balances only change through ApplyTx,
// which always writes the matching ledger entry in the same
// transaction.
type LedgerRepo struct {
	db *sqlx.DB
}

// NewLedgerRepo returns a new LedgerRepo bound to the given database.
func NewLedgerRepo(db *sqlx.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// ledgerTables maps a ledger kind to its balance column and entry table.
func ledgerTables(kind model.LedgerKind) (column, table string, err error) {
	switch kind {
	case model.LedgerPoints:
		return "points", "point_ledger", nil
	case model.LedgerManner:
		return "manner_score", "manner_ledger", nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidLedgerKind, kind)
}

// ApplyTx adds delta to the user's balance as balance = balance + delta
// evaluated by the database, reads the locked row back and appends the
// ledger entry with that snapshot.  Two concurrent penalties therefore
// never lose an update.
func (r *LedgerRepo) ApplyTx(ctx context.Context, tx *sqlx.Tx, userID uint64, kind model.LedgerKind, delta int64, reason string, at time.Time) (model.LedgerEntry, error) {
	column, table, err := ledgerTables(kind)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	var points, manner int64
	if kind == model.LedgerPoints {
		points = delta
	} else {
		manner = delta
	}
	upsert := `INSERT INTO user_balances (user_id, points, manner_score) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE ` + column + ` = ` + column + ` + ?`
	if _, err := tx.ExecContext(ctx, upsert, userID, points, manner, delta); err != nil {
		return model.LedgerEntry{}, err
	}
	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT `+column+` FROM user_balances WHERE user_id = ? FOR UPDATE`, userID); err != nil {
		return model.LedgerEntry{}, err
	}
	entry := model.LedgerEntry{
		UserID:       userID,
		Kind:         kind,
		Amount:       delta,
		Reason:       reason,
		BalanceAfter: balance,
		CreatedAt:    at.UTC(),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, amount, reason, balance_after, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Amount, entry.Reason, entry.BalanceAfter, entry.CreatedAt)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.LedgerEntry{}, err
	}
	entry.ID = uint64(id)
	return entry, nil
}

// Balance returns the user's balances; users without a row have zero.
func (r *LedgerRepo) Balance(ctx context.Context, userID uint64) (model.Balance, error) {
	var b model.Balance
	err := r.db.GetContext(ctx, &b, `SELECT user_id, points, manner_score FROM user_balances WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Balance{UserID: userID}, nil
	}
	return b, err
}

// History returns the newest entries of one ledger first.
func (r *LedgerRepo) History(ctx context.Context, userID uint64, kind model.LedgerKind, limit int) ([]model.LedgerEntry, error) {
	_, table, err := ledgerTables(kind)
	if err != nil {
		return nil, err
	}
	out := []model.LedgerEntry{}
	err = r.db.SelectContext(ctx, &out,
		`SELECT id, user_id, amount, reason, balance_after, created_at FROM `+table+`
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Kind = kind
	}
	return out, nil
}
