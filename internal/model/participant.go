package model

import "time"

// PaymentStatus is the payment flag supplied by the external payment
// collaborator.  The engine never moves money; it only reads this flag.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// Participant is one occupied seat in an event.  A user occupies at
// most one participant row per event.  Room number is not stored: it is
// derived from the participant's rank by (JoinedAt, ID) within the
// event, see package rooms.
//
// Fields:
//  ID            – auto-increment key; breaks JoinedAt ties.
//  EventID       – event the seat belongs to.
//  UserID        – user occupying the seat.
//  JoinedAt      – store-clock timestamp of the insert.
//  PaymentStatus – PENDING until the payment collaborator marks it PAID.
type Participant struct {
	ID            uint64        `json:"id" db:"id"`
	EventID       uint64        `json:"event_id" db:"event_id"`
	UserID        uint64        `json:"user_id" db:"user_id"`
	JoinedAt      time.Time     `json:"joined_at" db:"joined_at"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
}

// Pending reports whether the participant still owes payment.
func (p Participant) Pending() bool { return p.PaymentStatus == PaymentPending }
