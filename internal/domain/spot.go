package domain

import "time"

type SpotStatus string

const (
	SpotStatusFree        SpotStatus = "FREE"
	SpotStatusOccupied    SpotStatus = "OCCUPIED"
	SpotStatusReserved    SpotStatus = "RESERVED"
	SpotStatusMaintenance SpotStatus = "MAINTENANCE"
)

type VehicleCategory string

const (
	VehicleCategoryCar        VehicleCategory = "CAR"
	VehicleCategoryMotorcycle VehicleCategory = "MOTORCYCLE"
	VehicleCategoryVan        VehicleCategory = "VAN"
)

// Spot is a single physical parking space. Identity is the
// (FacilityID, Number) pair; numbers are unique within a facility.
// Status is owned by the coordinator and must never be written
// anywhere else.
type Spot struct {
	FacilityID int64
	Number     int
	Category   VehicleCategory
	Zone       *string
	Status     SpotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StatusChange is one row of the spot status audit log, appended in the
// same transaction as every status flip.
type StatusChange struct {
	ID         int64
	FacilityID int64
	SpotNumber int
	Prior      SpotStatus
	Next       SpotStatus
	Reason     string
	Actor      string
	OccurredAt time.Time
}
