package model

import "time"

// LedgerKind names one of the two independent per-user ledgers.
type LedgerKind string

const (
	LedgerPoints LedgerKind = "points"
	LedgerManner LedgerKind = "manner"
)

// Valid reports whether k names a known ledger.
func (k LedgerKind) Valid() bool { return k == LedgerPoints || k == LedgerManner }

// LedgerEntry is one immutable, append-only balance change.  The running
// sum of Amount for a user and kind equals the current balance, and
// BalanceAfter snapshots that balance right after the change was
// applied.  Corrections are new entries, never edits.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the balance.
//  Kind         – points or manner.
//  Amount       – signed delta.
//  Reason       – human-readable reason.
//  BalanceAfter – resulting balance.
//  CreatedAt    – store-clock timestamp.
type LedgerEntry struct {
	ID           uint64     `json:"id" db:"id"`
	UserID       uint64     `json:"user_id" db:"user_id"`
	Kind         LedgerKind `json:"kind" db:"-"`
	Amount       int64      `json:"amount" db:"amount"`
	Reason       string     `json:"reason" db:"reason"`
	BalanceAfter int64      `json:"balance_after" db:"balance_after"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Balance holds a user's current points and manner score.
type Balance struct {
	UserID      uint64 `json:"user_id" db:"user_id"`
	Points      int64  `json:"points" db:"points"`
	MannerScore int64  `json:"manner_score" db:"manner_score"`
}

// Of returns the balance of the given ledger.
func (b Balance) Of(kind LedgerKind) int64 {
	if kind == LedgerManner {
		return b.MannerScore
	}
	return b.Points
}
