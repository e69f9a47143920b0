package model

import "time"

// Hold is a temporary reservation placed by a room host on an empty
// seat of their room, usually for a specific invitee.  Holds prevent
// open-join traffic from taking the seat, but expire automatically at
// ExpiresAt.  Expiry is computed from the timestamp; nothing has to
// fire for a hold to lapse.
//
// Fields:
//  ID            – primary key identifier.
//  EventID       – event the seat belongs to.
//  RoomNo        – 1-based room number.
//  SlotIndex     – 0..3 position inside the room.
//  HolderUserID  – room host who placed the hold.
//  InviteeUserID – user the seat is reserved for (nullable).
//  Token         – opaque token returned to the holder.
//  CreatedAt     – store-clock creation time.
//  ExpiresAt     – CreatedAt + hold TTL.
type Hold struct {
	ID            uint64    `json:"id" db:"id"`
	EventID       uint64    `json:"event_id" db:"event_id"`
	RoomNo        int       `json:"room" db:"room_no"`
	SlotIndex     int       `json:"slot" db:"slot_index"`
	HolderUserID  uint64    `json:"holder_user_id" db:"holder_user_id"`
	InviteeUserID *uint64   `json:"invitee_user_id,omitempty" db:"invitee_user_id"`
	Token         string    `json:"token" db:"hold_token"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// LiveAt reports whether the hold has not yet expired at now.
func (h Hold) LiveAt(now time.Time) bool { return now.Before(h.ExpiresAt) }

// For reports whether the hold reserves its seat for userID.
func (h Hold) For(userID uint64) bool {
	return h.InviteeUserID != nil && *h.InviteeUserID == userID
}
