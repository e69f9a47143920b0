// Package service implements the capacity and slot lifecycle engine:
// participant join/leave/kick/invite, slot holds, the payment timeout
// sweep and the pre-reservation pool.  All state lives in a
// repository.Store; the engine keeps nothing between calls except an
// optional room-view cache keyed by roster version.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

// Notifier receives notifications after a transition commits.
// Implementations must not block; delivery failures stay inside them.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// RoomCache stores derived room views per roster version.
type RoomCache interface {
	Get(ctx context.Context, eventID, version uint64) ([]rooms.RoomView, bool)
	Put(ctx context.Context, eventID, version uint64, views []rooms.RoomView)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) {}

type nopCache struct{}

func (nopCache) Get(context.Context, uint64, uint64) ([]rooms.RoomView, bool) { return nil, false }
func (nopCache) Put(context.Context, uint64, uint64, []rooms.RoomView)         {}

// Engine is the entry point used by handlers and the sweeper.
type Engine struct {
	store    repository.Store
	policy   Policy
	notifier Notifier
	cache    RoomCache
}

// New builds an Engine.  A nil notifier or cache disables that feature.
func New(store repository.Store, policy Policy, notifier Notifier, cache RoomCache) *Engine {
	if store == nil {
		panic("nil store passed to service.New")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Engine{store: store, policy: policy, notifier: notifier, cache: cache}
}

// Policy returns the rules the engine runs with.
func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) notify(ctx context.Context, n model.Notification) {
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	e.notifier.Notify(ctx, n)
}

// auditDenied logs authorization failures; repeated ones may indicate
// tampering.
func auditDenied(op string, eventID, actorID, targetID uint64) {
	log.Warn().
		Str("module", "service.audit").
		Str("op", op).
		Uint64("event_id", eventID).
		Uint64("actor_id", actorID).
		Uint64("target_id", targetID).
		Msg("operation not authorized")
}
