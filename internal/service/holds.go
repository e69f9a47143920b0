package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

// seatMap is the occupancy of one event at one instant: seats
// 0..count-1 are taken by participants in join order, and live holds
// sit on coordinates at or after count.  count + len(holds) never
// exceeds capacity.
type seatMap struct {
	capacity int
	count    int
	holds    []model.Hold
}

// tidyHolds deletes holds that are expired or whose coordinate is now
// occupied, and returns the seat map built from what is left.  None of
// these rows would be read as live anyway; this only bounds storage.
func tidyHolds(ctx context.Context, tx repository.EventTx, now time.Time, count int) (seatMap, error) {
	m := seatMap{capacity: tx.Event().Capacity, count: count}
	if _, err := tx.PurgeExpiredHolds(ctx, now); err != nil {
		return m, fmt.Errorf("purge expired holds: %w", err)
	}
	holds, err := tx.Holds(ctx)
	if err != nil {
		return m, err
	}
	for _, h := range holds {
		if !h.LiveAt(now) {
			continue
		}
		if rooms.Index(h.RoomNo, h.SlotIndex) < count {
			if err := tx.DeleteHold(ctx, h.ID); err != nil {
				return m, err
			}
			continue
		}
		m.holds = append(m.holds, h)
	}
	return m, nil
}

// liveView filters holds outside a unit of work.
func liveView(holds []model.Hold, now time.Time, count int) []model.Hold {
	out := []model.Hold{}
	for _, h := range holds {
		if h.LiveAt(now) && rooms.Index(h.RoomNo, h.SlotIndex) >= count {
			out = append(out, h)
		}
	}
	return out
}

func (m seatMap) at(index int) (model.Hold, bool) {
	for _, h := range m.holds {
		if rooms.Index(h.RoomNo, h.SlotIndex) == index {
			return h, true
		}
	}
	return model.Hold{}, false
}

// claimFor returns the hold that a seat for userID consumes: the hold
// reserved for them, or, when placedBy is set, an open hold that
// placedBy created without naming an invitee.
func (m seatMap) claimFor(userID, placedBy uint64) (model.Hold, bool) {
	for _, h := range m.holds {
		if h.For(userID) {
			return h, true
		}
	}
	if placedBy == 0 {
		return model.Hold{}, false
	}
	for _, h := range m.holds {
		if h.InviteeUserID == nil && h.HolderUserID == placedBy {
			return h, true
		}
	}
	return model.Hold{}, false
}

// firstFree returns the lowest unoccupied, unheld seat index at or
// after from.
func (m seatMap) firstFree(from int) (int, bool) {
	for i := from; i < m.capacity; i++ {
		if _, held := m.at(i); !held {
			return i, true
		}
	}
	return 0, false
}

// admit inserts a participant for userID, consuming claim when present
// and re-pointing any other live hold that sat on the landing seat.
// The caller holds the event lock.
func admit(ctx context.Context, tx repository.EventTx, now time.Time, userID, placedBy uint64) (model.Participant, error) {
	ev := tx.Event()
	ps, err := tx.Participants(ctx)
	if err != nil {
		return model.Participant{}, err
	}
	for _, p := range ps {
		if p.UserID == userID {
			return model.Participant{}, repository.ErrAlreadyJoined
		}
	}
	m, err := tidyHolds(ctx, tx, now, len(ps))
	if err != nil {
		return model.Participant{}, err
	}
	claim, claimed := m.claimFor(userID, placedBy)
	others := len(m.holds)
	if claimed {
		others--
	}
	if m.count+others >= ev.Capacity {
		return model.Participant{}, repository.ErrEventFull
	}

	p := model.Participant{UserID: userID, JoinedAt: now, PaymentStatus: model.PaymentPending}
	if err := tx.InsertParticipant(ctx, &p); err != nil {
		return model.Participant{}, err
	}
	if claimed {
		if err := tx.DeleteHold(ctx, claim.ID); err != nil {
			return model.Participant{}, err
		}
	}
	landing := m.count
	if h, held := m.at(landing); held && (!claimed || h.ID != claim.ID) {
		rest := seatMap{capacity: m.capacity, count: m.count + 1}
		for _, o := range m.holds {
			if o.ID != h.ID && (!claimed || o.ID != claim.ID) {
				rest.holds = append(rest.holds, o)
			}
		}
		to, ok := rest.firstFree(rest.count)
		if !ok {
			return model.Participant{}, repository.ErrEventFull
		}
		room, slot := rooms.Coordinate(to)
		if err := tx.MoveHold(ctx, h.ID, room, slot); err != nil {
			return model.Participant{}, err
		}
		log.Debug().Str("module", "service.holds").Uint64("event_id", ev.ID).Uint64("hold_id", h.ID).
			Int("room", room).Int("slot", slot).Msg("moved hold off occupied seat")
	}
	if err := tx.BumpVersion(ctx); err != nil {
		return model.Participant{}, err
	}
	return p, nil
}

// PlaceHold reserves the empty seat (room, slot) for inviteeID.  Only
// the current host of room may place it.  inviteeID 0 places an open
// hold that only the holder's own Invite can fill.
func (e *Engine) PlaceHold(ctx context.Context, eventID uint64, room, slot int, holderID, inviteeID uint64) (model.Hold, error) {
	token, err := repository.NewHoldToken()
	if err != nil {
		return model.Hold{}, err
	}
	var (
		hold model.Hold
		now  time.Time
	)
	err = e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		ev := tx.Event()
		if !rooms.Addressable(room, slot, ev.Capacity) {
			return repository.ErrSlotOutOfRange
		}
		var err error
		if now, err = tx.Now(ctx); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		host, ok := rooms.HostOf(ps, ev.Capacity, room)
		if !ok || host.UserID != holderID {
			auditDenied("place_hold", eventID, holderID, inviteeID)
			return repository.ErrForbidden
		}
		if rooms.Index(room, slot) < len(ps) {
			return repository.ErrSlotOccupied
		}
		m, err := tidyHolds(ctx, tx, now, len(ps))
		if err != nil {
			return err
		}
		if _, held := m.at(rooms.Index(room, slot)); held {
			return repository.ErrHoldConflict
		}
		if inviteeID != 0 {
			for _, p := range ps {
				if p.UserID == inviteeID {
					return repository.ErrAlreadyJoined
				}
			}
			if _, dup := m.claimFor(inviteeID, 0); dup {
				return repository.ErrHoldConflict
			}
		}
		hold = model.Hold{
			RoomNo:       room,
			SlotIndex:    slot,
			HolderUserID: holderID,
			Token:        token,
			CreatedAt:    now,
			ExpiresAt:    now.Add(e.policy.HoldTTL),
		}
		if inviteeID != 0 {
			invitee := inviteeID
			hold.InviteeUserID = &invitee
		}
		return tx.InsertHold(ctx, &hold)
	})
	if err != nil {
		return model.Hold{}, err
	}
	if inviteeID != 0 {
		s := slot
		e.notify(ctx, model.Notification{
			Kind: model.NotifyInvited, EventID: eventID, UserID: inviteeID, ActorID: holderID,
			Room: room, Slot: &s, Detail: "seat reserved until " + hold.ExpiresAt.Format(time.RFC3339), CreatedAt: now,
		})
	}
	e.notify(ctx, model.Notification{Kind: model.NotifyHoldPlaced, EventID: eventID, UserID: holderID, Room: room, CreatedAt: now})
	return hold, nil
}

// IsHeld reports whether (room, slot) currently has a live hold.  An
// expired hold reads as absent whether or not its row was deleted.
func (e *Engine) IsHeld(ctx context.Context, eventID uint64, room, slot int) (bool, error) {
	_, err := e.HoldAt(ctx, eventID, room, slot)
	if errors.Is(err, repository.ErrHoldNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HoldAt returns the live hold at (room, slot) or ErrHoldNotFound.
func (e *Engine) HoldAt(ctx context.Context, eventID uint64, room, slot int) (model.Hold, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Hold{}, err
	}
	if !rooms.Addressable(room, slot, ev.Capacity) {
		return model.Hold{}, repository.ErrSlotOutOfRange
	}
	live, err := e.ListHolds(ctx, eventID)
	if err != nil {
		return model.Hold{}, err
	}
	for _, h := range live {
		if h.RoomNo == room && h.SlotIndex == slot {
			return h, nil
		}
	}
	return model.Hold{}, repository.ErrHoldNotFound
}

// ListHolds returns the event's live holds.
func (e *Engine) ListHolds(ctx context.Context, eventID uint64) ([]model.Hold, error) {
	now, err := e.store.Now(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := e.store.Participants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	holds, err := e.store.Holds(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return liveView(holds, now, len(ps)), nil
}

// CancelHold removes the live hold at (room, slot).  The holder and the
// event host may cancel it.
func (e *Engine) CancelHold(ctx context.Context, eventID uint64, room, slot int, actorID uint64) error {
	return e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		ev := tx.Event()
		if !rooms.Addressable(room, slot, ev.Capacity) {
			return repository.ErrSlotOutOfRange
		}
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		m, err := tidyHolds(ctx, tx, now, len(ps))
		if err != nil {
			return err
		}
		h, held := m.at(rooms.Index(room, slot))
		if !held {
			return repository.ErrHoldNotFound
		}
		if actorID != h.HolderUserID && actorID != ev.HostUserID {
			auditDenied("cancel_hold", eventID, actorID, h.HolderUserID)
			return repository.ErrForbidden
		}
		return tx.DeleteHold(ctx, h.ID)
	})
}
