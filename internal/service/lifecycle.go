package service

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

// RoomsSnapshot is the derived view of an event returned to callers.
type RoomsSnapshot struct {
	Event model.Event      `json:"event"`
	Rooms []rooms.RoomView `json:"rooms"`
	Holds []model.Hold     `json:"holds"`
}

// CreateEvent stores a new round hosted by hostID.
func (e *Engine) CreateEvent(ctx context.Context, hostID uint64, title string, capacity int, startsAt time.Time) (model.Event, error) {
	if capacity < 1 {
		return model.Event{}, repository.ErrInvalidCapacity
	}
	ev := model.Event{HostUserID: hostID, Title: title, Capacity: capacity, StartsAt: startsAt.UTC()}
	if err := e.store.CreateEvent(ctx, &ev); err != nil {
		return model.Event{}, err
	}
	log.Info().Str("module", "service.lifecycle").Uint64("event_id", ev.ID).Int("capacity", capacity).Msg("event created")
	return ev, nil
}

// Event returns one event.
func (e *Engine) Event(ctx context.Context, eventID uint64) (model.Event, error) {
	return e.store.GetEvent(ctx, eventID)
}

// Participants returns the event's participants in join order.
func (e *Engine) Participants(ctx context.Context, eventID uint64) ([]model.Participant, error) {
	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return e.store.Participants(ctx, eventID)
}

// Rooms recomputes the room partition of an event.  Views are cached
// under the roster version; a version read before and after the
// participant snapshot must agree before anything is cached.
func (e *Engine) Rooms(ctx context.Context, eventID uint64) (RoomsSnapshot, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return RoomsSnapshot{}, err
	}
	holds, err := e.ListHolds(ctx, eventID)
	if err != nil {
		return RoomsSnapshot{}, err
	}
	if views, ok := e.cache.Get(ctx, eventID, ev.RosterVersion); ok {
		return RoomsSnapshot{Event: ev, Rooms: views, Holds: holds}, nil
	}
	ps, err := e.store.Participants(ctx, eventID)
	if err != nil {
		return RoomsSnapshot{}, err
	}
	views := rooms.Assign(ps, ev.Capacity)
	if after, err := e.store.GetEvent(ctx, eventID); err == nil && after.RosterVersion == ev.RosterVersion {
		e.cache.Put(ctx, eventID, ev.RosterVersion, views)
	}
	return RoomsSnapshot{Event: ev, Rooms: views, Holds: holds}, nil
}

// Join gives userID a seat.  The capacity check and the insert happen in
// one unit of work under the event lock, so concurrent joins can never
// overshoot capacity.  Seats held live for other users count as taken.
func (e *Engine) Join(ctx context.Context, eventID, userID uint64) (model.Participant, error) {
	var (
		p   model.Participant
		now time.Time
	)
	err := e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		var err error
		if now, err = tx.Now(ctx); err != nil {
			return err
		}
		p, err = admit(ctx, tx, now, userID, 0)
		return err
	})
	if err != nil {
		return model.Participant{}, err
	}
	e.notify(ctx, model.Notification{Kind: model.NotifyPaymentPending, EventID: eventID, UserID: userID, CreatedAt: now,
		Detail: "pay before " + now.Add(e.policy.PaymentDeadline).Format(time.RFC3339)})
	return p, nil
}

// Invite seats inviteeID directly.  The inviter must be the event host
// or currently host a room.  A hold reserved for the invitee, or an
// open hold the inviter placed, is consumed by the new seat.
func (e *Engine) Invite(ctx context.Context, eventID, inviterID, inviteeID uint64) (model.Participant, error) {
	var (
		p   model.Participant
		now time.Time
	)
	err := e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		ev := tx.Event()
		if inviterID != ev.HostUserID {
			ps, err := tx.Participants(ctx)
			if err != nil {
				return err
			}
			if !slices.Contains(rooms.Hosts(ps, ev.Capacity), inviterID) {
				auditDenied("invite", eventID, inviterID, inviteeID)
				return repository.ErrForbidden
			}
		}
		var err error
		if now, err = tx.Now(ctx); err != nil {
			return err
		}
		p, err = admit(ctx, tx, now, inviteeID, inviterID)
		return err
	})
	if err != nil {
		return model.Participant{}, err
	}
	e.notify(ctx, model.Notification{Kind: model.NotifyInvited, EventID: eventID, UserID: inviteeID, ActorID: inviterID, CreatedAt: now})
	e.notify(ctx, model.Notification{Kind: model.NotifyPaymentPending, EventID: eventID, UserID: inviteeID, CreatedAt: now,
		Detail: "pay before " + now.Add(e.policy.PaymentDeadline).Format(time.RFC3339)})
	return p, nil
}

// Leave frees the user's seat.  It is idempotent and never touches the
// ledgers.
func (e *Engine) Leave(ctx context.Context, eventID, userID uint64) error {
	_, err := e.release(ctx, eventID, userID)
	return err
}

// Kick removes targetID's seat.  Only the event's top-level host may
// kick; room hosts may not.  Kicks carry no penalty.
func (e *Engine) Kick(ctx context.Context, eventID, actorID, targetID uint64) error {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if actorID != ev.HostUserID {
		auditDenied("kick", eventID, actorID, targetID)
		return repository.ErrForbidden
	}
	removed, err := e.release(ctx, eventID, targetID)
	if err != nil {
		return err
	}
	if removed {
		e.notify(ctx, model.Notification{Kind: model.NotifyKicked, EventID: eventID, UserID: targetID, ActorID: actorID})
	}
	return nil
}

// release is the seat-freeing primitive shared by leave and kick.
func (e *Engine) release(ctx context.Context, eventID, userID uint64) (bool, error) {
	var removed bool
	err := e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		var err error
		if removed, err = tx.DeleteParticipant(ctx, userID); err != nil || !removed {
			return err
		}
		return tx.BumpVersion(ctx)
	})
	return removed, err
}

// MarkPaid records the payment collaborator's confirmation.  A paid
// participant is no longer subject to the timeout sweep.
func (e *Engine) MarkPaid(ctx context.Context, eventID, userID uint64) error {
	return e.store.InEvent(ctx, eventID, func(tx repository.EventTx) error {
		ok, err := tx.SetPaymentStatus(ctx, userID, model.PaymentPaid)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrNotJoined
		}
		return tx.BumpVersion(ctx)
	})
}
