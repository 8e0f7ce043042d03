package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSpotUnavailable: the spot is not Free (or not Reserved for the
	// caller) when a transition requiring it was attempted.
	ErrSpotUnavailable = errors.New("spot unavailable")

	// ErrSpotOccupied: the spot has an active occupancy and cannot be
	// blocked for maintenance.
	ErrSpotOccupied = errors.New("spot has an active occupancy")

	// ErrSpotHasActiveReservation: the spot has a live hold and cannot
	// be blocked for maintenance.
	ErrSpotHasActiveReservation = errors.New("spot has an active reservation")

	// ErrDuplicateActiveOccupancy: the plate or the spot already has an
	// active occupancy; raised by the storage uniqueness constraints.
	ErrDuplicateActiveOccupancy = errors.New("duplicate active occupancy")

	// ErrInvalidTransition: the attempted spot status transition is not
	// defined for the current state.
	ErrInvalidTransition = errors.New("invalid spot status transition")

	// ErrVehicleMismatch: plate at conversion time differs from the
	// reservation's bound plate and no operator override was given.
	ErrVehicleMismatch = errors.New("vehicle plate does not match reservation")

	// ErrAlreadyClosed: checkout or cancel on an already-terminal
	// record; callers retrying may treat it as idempotent success.
	ErrAlreadyClosed = errors.New("record already closed")

	ErrNotFound = errors.New("not found")
)

// TransitionError carries the full prior-state context of a rejected
// transition so callers can produce an actionable message.
type TransitionError struct {
	FacilityID int64
	SpotNumber int
	From       SpotStatus
	Event      Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("facility %d spot %d: event %q not allowed from status %q",
		e.FacilityID, e.SpotNumber, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
