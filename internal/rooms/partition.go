// Package rooms derives room membership and room hosts from an event's
// participant set.  Nothing here is stored: rooms are a pure function of
// the participants ordered by join time, recomputed after every change.
package rooms

import (
	"slices"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// Size is the number of seats in a full room.
const Size = 4

// RoomView is the derived state of one room.
type RoomView struct {
	Number  int                 `json:"room"`
	Ceiling int                 `json:"ceiling"`
	Members []model.Participant `json:"members"`
	Host    *model.Participant  `json:"host,omitempty"`
	Open    int                 `json:"open"`
}

// Count returns the number of addressable rooms for capacity.
func Count(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return (capacity + Size - 1) / Size
}

// Ceiling is the number of seats in room (1-based) for capacity.  Rooms
// past the capacity boundary have a ceiling of zero.
func Ceiling(room, capacity int) int {
	if room < 1 {
		return 0
	}
	c := capacity - Size*(room-1)
	if c <= 0 {
		return 0
	}
	return min(Size, c)
}

// Coordinate maps a 0-based join rank to its (room, slot).
func Coordinate(index int) (room, slot int) {
	return index/Size + 1, index % Size
}

// Index is the inverse of Coordinate.
func Index(room, slot int) int {
	return (room-1)*Size + slot
}

// Addressable reports whether (room, slot) names a seat within capacity.
func Addressable(room, slot, capacity int) bool {
	return slot >= 0 && slot < Ceiling(room, capacity)
}

// Order sorts a copy of participants by join time, ties broken by ID.
func Order(participants []model.Participant) []model.Participant {
	out := slices.Clone(participants)
	slices.SortStableFunc(out, func(a, b model.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Assign partitions participants into rooms of Size in join order.  The
// first member of each room is its host.  Every addressable room is
// returned, empty ones without a host.  Participants beyond capacity
// are ignored; the engine never lets that happen.
func Assign(participants []model.Participant, capacity int) []RoomView {
	ordered := Order(participants)
	n := Count(capacity)
	views := make([]RoomView, 0, n)
	for room := 1; room <= n; room++ {
		ceil := Ceiling(room, capacity)
		lo := Index(room, 0)
		hi := min(lo+ceil, len(ordered))
		v := RoomView{Number: room, Ceiling: ceil, Members: []model.Participant{}}
		if lo < hi {
			v.Members = ordered[lo:hi:hi]
			host := v.Members[0]
			v.Host = &host
		}
		v.Open = ceil - len(v.Members)
		views = append(views, v)
	}
	return views
}

// HostOf returns the host of room, or false when the room is empty or
// not addressable.
func HostOf(participants []model.Participant, capacity, room int) (model.Participant, bool) {
	if room < 1 || room > Count(capacity) {
		return model.Participant{}, false
	}
	ordered := Order(participants)
	idx := Index(room, 0)
	if idx >= len(ordered) {
		return model.Participant{}, false
	}
	return ordered[idx], true
}

// Hosts returns the user IDs of every current room host.
func Hosts(participants []model.Participant, capacity int) []uint64 {
	var ids []uint64
	for _, v := range Assign(participants, capacity) {
		if v.Host != nil {
			ids = append(ids, v.Host.UserID)
		}
	}
	return ids
}
