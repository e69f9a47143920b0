package model

import "time"

// PreReservation registers interest in an event without occupying a
// seat.  There is no capacity limit; at most one row per (event, user).
type PreReservation struct {
	ID        uint64    `json:"id" db:"id"`
	EventID   uint64    `json:"event_id" db:"event_id"`
	UserID    uint64    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
