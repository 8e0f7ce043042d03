package domain

import (
	"time"

	"github.com/google/uuid"
)

// Occupancy is one check-in-to-check-out stay of a vehicle. SpotNumber
// is nil for a free-form entry where zone assignment happens later.
// ExitAt nil means the stay is still active.
type Occupancy struct {
	ID         uuid.UUID
	FacilityID int64
	SpotNumber *int
	Plate      string
	EntryAt    time.Time
	ExitAt     *time.Time
	TariffRef  *string
	PaymentRef *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (o *Occupancy) Active() bool {
	return o.ExitAt == nil
}
