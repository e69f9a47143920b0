// Package repository defines the persistence contract of the round
// engine, its MySQL implementation and the sentinel errors shared by
// every layer.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios with
// errors.Is.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller is not allowed to perform an
// operation, e.g. kicking without being the event host or placing a
// hold in a room they do not host.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state that has no more specific error.
var ErrConflict = errors.New("conflict")

// Capacity and state conflicts.  All of them are recoverable and are
// surfaced to the caller, who is expected to refresh its view.
var (
	ErrEventNotFound   = errors.New("event not found")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrEventFull       = errors.New("event is full")
	ErrAlreadyJoined   = errors.New("user already joined this event")
	ErrNotJoined       = errors.New("user has not joined this event")
	ErrAlreadyReserved = errors.New("user already pre-reserved this event")
	ErrNotReserved     = errors.New("user has no pre-reservation for this event")
	ErrHoldConflict    = errors.New("slot already has a live hold")
	ErrSlotOccupied    = errors.New("slot is occupied")
	ErrSlotOutOfRange  = errors.New("slot is not addressable")
	ErrHoldNotFound    = errors.New("hold not found")
)

// ErrInvalidLedgerKind is returned for a ledger kind other than points
// or manner.
var ErrInvalidLedgerKind = errors.New("unknown ledger kind")

// mysqlDuplicateKey is ER_DUP_ENTRY.
const mysqlDuplicateKey = 1062

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateKey
}
