package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
)

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 50

// Balance returns the user's current points and manner score.
func (e *Engine) Balance(ctx context.Context, userID uint64) (model.Balance, error) {
	return e.store.Balance(ctx, userID)
}

// History returns the newest ledger entries of one kind.
func (e *Engine) History(ctx context.Context, userID uint64, kind model.LedgerKind, limit int) ([]model.LedgerEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidLedgerKind, kind)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.store.LedgerHistory(ctx, userID, kind, limit)
}
