package domain

import (
	"time"

	"github.com/google/uuid"
)

// Movement is an append-only audit entry recorded whenever an active
// occupancy changes spots. OriginSpot is nil when a free-form stay is
// assigned its first spot.
type Movement struct {
	ID              int64
	FacilityID      int64
	OccupancyID     uuid.UUID
	Plate           string
	OriginSpot      *int
	DestinationSpot int
	OriginZone      *string
	DestinationZone *string
	OperatorID      string
	Reason          string
	OccurredAt      time.Time
}
