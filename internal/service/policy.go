package service

import (
	"errors"
	"time"
)

// Policy holds the named constants of the round rules.  Deadline and
// penalty magnitudes differ between sources of the original product, so
// they are configuration rather than literals.
type Policy struct {
	// PaymentDeadline is how long a participant may stay PENDING.
	PaymentDeadline time.Duration
	// HoldTTL is the lifetime of a slot hold.
	HoldTTL time.Duration
	// TimeoutPointsPenalty and TimeoutMannerPenalty are debited once per
	// timeout eviction.
	TimeoutPointsPenalty int64
	TimeoutMannerPenalty int64
	// PreReservationReward is credited on apply and debited on cancel.
	PreReservationReward int64
	// SweepBatch caps the rows one sweep pass examines.
	SweepBatch int
	// SweepConcurrency bounds parallel evictions within a pass.
	SweepConcurrency int
}

// DefaultPolicy returns the production values.
func DefaultPolicy() Policy {
	return Policy{
		PaymentDeadline:      3 * time.Hour,
		HoldTTL:              6 * time.Hour,
		TimeoutPointsPenalty: 20,
		TimeoutMannerPenalty: 30,
		PreReservationReward: 1,
		SweepBatch:           500,
		SweepConcurrency:     4,
	}
}

// Validate rejects policies the engine cannot run with.
func (p Policy) Validate() error {
	switch {
	case p.PaymentDeadline <= 0:
		return errors.New("payment deadline must be positive")
	case p.HoldTTL <= 0:
		return errors.New("hold ttl must be positive")
	case p.TimeoutPointsPenalty < 0, p.TimeoutMannerPenalty < 0, p.PreReservationReward < 0:
		return errors.New("penalties and rewards are magnitudes and must not be negative")
	case p.SweepBatch < 1:
		return errors.New("sweep batch must be at least 1")
	case p.SweepConcurrency < 1:
		return errors.New("sweep concurrency must be at least 1")
	}
	return nil
}
