// Package queue carries engine notifications to RabbitMQ and consumes
// them on the other side.  Delivery is best effort: nothing here can
// fail or delay the state transition that produced a notification.
package queue

import (
	"time"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// DefaultQueueName is the durable queue notifications are routed to.
const DefaultQueueName = "round_notifications"

// NotificationMessage is the wire form of a model.Notification.  It
// contains enough information for downstream consumers (push, e-mail,
// in-app inbox) to render the message without querying the primary
// database.
type NotificationMessage struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	EventID   uint64 `json:"event_id"`
	UserID    uint64 `json:"user_id"`
	ActorID   uint64 `json:"actor_id,omitempty"`
	Room      int    `json:"room,omitempty"`
	Slot      *int   `json:"slot,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// MessageFrom converts a notification to its wire form.
func MessageFrom(n model.Notification) NotificationMessage {
	return NotificationMessage{
		ID:        n.ID,
		Kind:      string(n.Kind),
		EventID:   n.EventID,
		UserID:    n.UserID,
		ActorID:   n.ActorID,
		Room:      n.Room,
		Slot:      n.Slot,
		Detail:    n.Detail,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
