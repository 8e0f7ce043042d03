package domain

// Event is a signal consumed by the spot status coordinator.
type Event string

const (
	EventOccupy             Event = "occupy"
	EventRelease            Event = "release"
	EventReleaseToReserved  Event = "release_handover"
	EventReserve            Event = "reserve"
	EventConvertReservation Event = "convert_reservation"
	EventExpireReservation  Event = "expire_reservation"
	EventCancelReservation  Event = "cancel_reservation"
	EventEnableMaintenance  Event = "enable_maintenance"
	EventDisableMaintenance Event = "disable_maintenance"
)

// transitions is the total transition table for a spot. A (status,
// event) pair absent from it is an illegal transition and is surfaced
// as a TransitionError, never silently ignored.
var transitions = map[SpotStatus]map[Event]SpotStatus{
	SpotStatusFree: {
		EventOccupy:            SpotStatusOccupied,
		EventReserve:           SpotStatusReserved,
		EventEnableMaintenance: SpotStatusMaintenance,
	},
	SpotStatusOccupied: {
		EventRelease:           SpotStatusFree,
		EventReleaseToReserved: SpotStatusReserved,
	},
	SpotStatusReserved: {
		EventConvertReservation: SpotStatusOccupied,
		EventExpireReservation:  SpotStatusFree,
		EventCancelReservation:  SpotStatusFree,
	},
	SpotStatusMaintenance: {
		EventDisableMaintenance: SpotStatusFree,
	},
}

// NextStatus resolves the transition table. The second return value is
// false when the event is not legal from the current status.
func NextStatus(current SpotStatus, ev Event) (SpotStatus, bool) {
	next, ok := transitions[current][ev]
	return next, ok
}

// SourceStatuses returns every status from which the event is legal.
// Repositories use it to build guarded status updates.
func SourceStatuses(ev Event) []SpotStatus {
	var from []SpotStatus
	for status, events := range transitions {
		if _, ok := events[ev]; ok {
			from = append(from, status)
		}
	}
	return from
}
