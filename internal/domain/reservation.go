package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPendingPayment      ReservationStatus = "PENDING_PAYMENT"
	ReservationStatusPendingConfirmation ReservationStatus = "PENDING_CONFIRMATION"
	ReservationStatusConfirmed           ReservationStatus = "CONFIRMED"
	ReservationStatusActive              ReservationStatus = "ACTIVE"
	ReservationStatusCompleted           ReservationStatus = "COMPLETED"
	ReservationStatusExpired             ReservationStatus = "EXPIRED"
	ReservationStatusCancelled           ReservationStatus = "CANCELLED"
)

// HoldingStatuses are the reservation states that keep a spot held.
// At most one reservation per spot may be in any of them; this is the
// same mutual-exclusion invariant as occupancy, scoped to the
// not-yet-arrived phase.
var HoldingStatuses = []ReservationStatus{
	ReservationStatusPendingPayment,
	ReservationStatusPendingConfirmation,
	ReservationStatusConfirmed,
	ReservationStatusActive,
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusExpired || s == ReservationStatusCancelled
}

// Reservation is a time-bounded hold on a spot made before the vehicle
// arrives. Code is the external-facing, human-shareable identifier.
type Reservation struct {
	ID           int64
	Code         string
	FacilityID   int64
	SpotNumber   int
	Plate        string
	DriverID     string
	HoldStart    time.Time
	HoldEnd      time.Time
	AmountCents  int64
	Status       ReservationStatus
	GraceMinutes int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiryDeadline is the instant after which a confirmed reservation may
// be swept: the end of the hold plus the booked grace period.
func (r *Reservation) ExpiryDeadline() time.Time {
	return r.HoldEnd.Add(time.Duration(r.GraceMinutes) * time.Minute)
}
