package memory

import (
	"context"
	"slices"
	"time"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

// tx mutates the store directly while s.mu is held and records the
// inverse of each change.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) run(fn func() error) error {
	if err := fn(); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

func (t *tx) ApplyLedger(_ context.Context, userID uint64, kind model.LedgerKind, delta int64, reason string, at time.Time) (model.LedgerEntry, error) {
	s := t.s
	prev, had := s.balances[userID]
	b := prev
	b.UserID = userID
	if kind == model.LedgerManner {
		b.MannerScore += delta
	} else {
		b.Points += delta
	}
	s.balances[userID] = b

	entry := model.LedgerEntry{
		ID:           s.nextID(),
		UserID:       userID,
		Kind:         kind,
		Amount:       delta,
		Reason:       reason,
		BalanceAfter: b.Of(kind),
		CreatedAt:    at.UTC(),
	}
	n := len(s.ledger[kind])
	s.ledger[kind] = append(s.ledger[kind], entry)
	t.undo = append(t.undo, func() {
		s.ledger[kind] = s.ledger[kind][:n]
		if had {
			s.balances[userID] = prev
		} else {
			delete(s.balances, userID)
		}
	})
	return entry, nil
}

func (t *tx) InsertPreReservation(_ context.Context, pr *model.PreReservation) error {
	s := t.s
	k := prKey{pr.EventID, pr.UserID}
	if _, ok := s.preRes[k]; ok {
		return repository.ErrAlreadyReserved
	}
	pr.ID = s.nextID()
	pr.CreatedAt = pr.CreatedAt.UTC()
	s.preRes[k] = *pr
	t.undo = append(t.undo, func() { delete(s.preRes, k) })
	return nil
}

func (t *tx) DeletePreReservation(_ context.Context, eventID, userID uint64) (bool, error) {
	s := t.s
	k := prKey{eventID, userID}
	prev, ok := s.preRes[k]
	if !ok {
		return false, nil
	}
	delete(s.preRes, k)
	t.undo = append(t.undo, func() { s.preRes[k] = prev })
	return true, nil
}

type eventTx struct {
	tx
	event model.Event
}

func (t *eventTx) Event() model.Event { return t.event }

func (t *eventTx) Now(ctx context.Context) (time.Time, error) { return t.s.Now(ctx) }

// snapshotParticipants saves the event's participant slice for undo.
func (t *eventTx) snapshotParticipants() {
	s, id := t.s, t.event.ID
	prev := slices.Clone(s.participants[id])
	t.undo = append(t.undo, func() { s.participants[id] = prev })
}

func (t *eventTx) snapshotHolds() {
	s, id := t.s, t.event.ID
	prev := slices.Clone(s.holds[id])
	t.undo = append(t.undo, func() { s.holds[id] = prev })
}

func (t *eventTx) Participants(context.Context) ([]model.Participant, error) {
	return rooms.Order(t.s.participants[t.event.ID]), nil
}

func (t *eventTx) InsertParticipant(_ context.Context, p *model.Participant) error {
	s, id := t.s, t.event.ID
	for _, cur := range s.participants[id] {
		if cur.UserID == p.UserID {
			return repository.ErrAlreadyJoined
		}
	}
	t.snapshotParticipants()
	p.ID = s.nextID()
	p.EventID = id
	p.JoinedAt = p.JoinedAt.UTC()
	s.participants[id] = append(s.participants[id], *p)
	return nil
}

func (t *eventTx) deleteWhere(match func(model.Participant) bool) bool {
	s, id := t.s, t.event.ID
	i := slices.IndexFunc(s.participants[id], match)
	if i < 0 {
		return false
	}
	t.snapshotParticipants()
	s.participants[id] = slices.Delete(slices.Clone(s.participants[id]), i, i+1)
	return true
}

func (t *eventTx) DeleteParticipant(_ context.Context, userID uint64) (bool, error) {
	return t.deleteWhere(func(p model.Participant) bool { return p.UserID == userID }), nil
}

func (t *eventTx) DeletePendingBefore(_ context.Context, userID uint64, cutoff time.Time) (bool, error) {
	return t.deleteWhere(func(p model.Participant) bool {
		return p.UserID == userID && p.Pending() && p.JoinedAt.Before(cutoff)
	}), nil
}

func (t *eventTx) SetPaymentStatus(_ context.Context, userID uint64, status model.PaymentStatus) (bool, error) {
	s, id := t.s, t.event.ID
	i := slices.IndexFunc(s.participants[id], func(p model.Participant) bool { return p.UserID == userID })
	if i < 0 {
		return false, nil
	}
	t.snapshotParticipants()
	ps := slices.Clone(s.participants[id])
	ps[i].PaymentStatus = status
	s.participants[id] = ps
	return true, nil
}

func (t *eventTx) Holds(context.Context) ([]model.Hold, error) {
	return slices.Clone(t.s.holds[t.event.ID]), nil
}

func (t *eventTx) InsertHold(_ context.Context, h *model.Hold) error {
	s, id := t.s, t.event.ID
	for _, cur := range s.holds[id] {
		if cur.RoomNo == h.RoomNo && cur.SlotIndex == h.SlotIndex {
			return repository.ErrHoldConflict
		}
	}
	t.snapshotHolds()
	h.ID = s.nextID()
	h.EventID = id
	s.holds[id] = append(slices.Clone(s.holds[id]), *h)
	return nil
}

func (t *eventTx) DeleteHold(_ context.Context, holdID uint64) error {
	s, id := t.s, t.event.ID
	i := slices.IndexFunc(s.holds[id], func(h model.Hold) bool { return h.ID == holdID })
	if i < 0 {
		return nil
	}
	t.snapshotHolds()
	s.holds[id] = slices.Delete(slices.Clone(s.holds[id]), i, i+1)
	return nil
}

func (t *eventTx) MoveHold(_ context.Context, holdID uint64, room, slot int) error {
	s, id := t.s, t.event.ID
	hs := s.holds[id]
	i := -1
	for j, h := range hs {
		if h.ID == holdID {
			i = j
			continue
		}
		if h.RoomNo == room && h.SlotIndex == slot {
			return repository.ErrHoldConflict
		}
	}
	if i < 0 {
		return repository.ErrHoldNotFound
	}
	t.snapshotHolds()
	hs = slices.Clone(hs)
	hs[i].RoomNo, hs[i].SlotIndex = room, slot
	s.holds[id] = hs
	return nil
}

func (t *eventTx) PurgeExpiredHolds(_ context.Context, now time.Time) (int64, error) {
	s, id := t.s, t.event.ID
	kept := make([]model.Hold, 0, len(s.holds[id]))
	for _, h := range s.holds[id] {
		if h.LiveAt(now) {
			kept = append(kept, h)
		}
	}
	n := int64(len(s.holds[id]) - len(kept))
	if n > 0 {
		t.snapshotHolds()
		s.holds[id] = kept
	}
	return n, nil
}

func (t *eventTx) BumpVersion(context.Context) error {
	s, id := t.s, t.event.ID
	prev := s.events[id]
	ev := prev
	ev.RosterVersion++
	s.events[id] = ev
	t.event.RosterVersion = ev.RosterVersion
	t.undo = append(t.undo, func() { s.events[id] = prev })
	return nil
}
