// Package memory is an in-process repository.Store.  It backs
// STORE_DRIVER=memory for local runs without MySQL and the engine tests.
// A single mutex serializes every unit of work, which is a stricter
// form of the per-event lock the MySQL store takes; failed units are
// rolled back through an undo log.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

type prKey struct{ eventID, userID uint64 }

// Store keeps all state in maps guarded by mu.
type Store struct {
	mu           sync.Mutex
	seq          uint64
	events       map[uint64]model.Event
	participants map[uint64][]model.Participant
	holds        map[uint64][]model.Hold
	preRes       map[prKey]model.PreReservation
	balances     map[uint64]model.Balance
	ledger       map[model.LedgerKind][]model.LedgerEntry

	clockMu sync.RWMutex
	clock   func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store using the wall clock.
func New() *Store {
	return &Store{
		events:       map[uint64]model.Event{},
		participants: map[uint64][]model.Participant{},
		holds:        map[uint64][]model.Hold{},
		preRes:       map[prKey]model.PreReservation{},
		balances:     map[uint64]model.Balance{},
		ledger:       map[model.LedgerKind][]model.LedgerEntry{},
		clock:        time.Now,
	}
}

// SetClock replaces the store clock.
func (s *Store) SetClock(fn func() time.Time) {
	s.clockMu.Lock()
	s.clock = fn
	s.clockMu.Unlock()
}

func (s *Store) Now(context.Context) (time.Time, error) {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	return s.clock().UTC(), nil
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) CreateEvent(ctx context.Context, ev *model.Event) error {
	if ev.Capacity < 1 {
		return repository.ErrInvalidCapacity
	}
	now, _ := s.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID()
	ev.RosterVersion = 0
	ev.CreatedAt = now
	ev.StartsAt = ev.StartsAt.UTC()
	s.events[ev.ID] = *ev
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return ev, nil
}

func (s *Store) Participants(_ context.Context, eventID uint64) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rooms.Order(s.participants[eventID]), nil
}

func (s *Store) Holds(_ context.Context, eventID uint64) ([]model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.holds[eventID]), nil
}

func (s *Store) PendingBefore(_ context.Context, cutoff time.Time, limit int) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Participant
	for _, ps := range s.participants {
		for _, p := range ps {
			if p.Pending() && p.JoinedAt.Before(cutoff) {
				out = append(out, p)
			}
		}
	}
	out = rooms.Order(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PreReservations(_ context.Context, eventID uint64) ([]model.PreReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PreReservation{}
	for k, pr := range s.preRes {
		if k.eventID == eventID {
			out = append(out, pr)
		}
	}
	slices.SortFunc(out, func(a, b model.PreReservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) Balance(_ context.Context, userID uint64) (model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return model.Balance{UserID: userID}, nil
	}
	return b, nil
}

func (s *Store) LedgerHistory(_ context.Context, userID uint64, kind model.LedgerKind, limit int) ([]model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.LedgerEntry{}
	entries := s.ledger[kind]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].UserID != userID {
			continue
		}
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &tx{s: s}
	return t.run(func() error { return fn(t) })
}

func (s *Store) InEvent(ctx context.Context, eventID uint64, fn func(repository.EventTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	t := &eventTx{tx: tx{s: s}, event: ev}
	return t.run(func() error { return fn(t) })
}
