package model

import "time"

// Event identifies one round: a capacity-limited, time-boxed meetup whose
// participants are split into rooms of four in join order.  Capacity is
// fixed at creation; nothing in the engine resizes an event.
//
// Fields:
//  ID            – primary key identifier.
//  HostUserID    – organizer who created the event.  This is the
//                  top-level host, distinct from per-room hosts.
//  Title         – display name.
//  Capacity      – total number of seats (>= 1).
//  StartsAt      – when the round begins.
//  RosterVersion – bumped on every participant mutation; derived room
//                  views are cached under this version.
//  CreatedAt     – creation timestamp.
type Event struct {
	ID            uint64    `json:"id" db:"id"`
	HostUserID    uint64    `json:"host_user_id" db:"host_user_id"`
	Title         string    `json:"title" db:"title"`
	Capacity      int       `json:"capacity" db:"capacity"`
	StartsAt      time.Time `json:"starts_at" db:"starts_at"`
	RosterVersion uint64    `json:"roster_version" db:"roster_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
