package model

import "time"

// NotificationKind enumerates the messages the engine emits to the
// notification dispatcher.
type NotificationKind string

const (
	NotifyKicked         NotificationKind = "kicked"
	NotifyPaymentPending NotificationKind = "payment_pending"
	NotifyInvited        NotificationKind = "invited"
	NotifyHoldPlaced     NotificationKind = "hold_placed"
	NotifyEvicted        NotificationKind = "evicted"
)

// Notification is published after a state transition commits.  Delivery
// is best effort and never affects the transition itself.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	EventID   uint64           `json:"event_id"`
	UserID    uint64           `json:"user_id"`
	ActorID   uint64           `json:"actor_id,omitempty"`
	Room      int              `json:"room,omitempty"`
	Slot      *int             `json:"slot,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
