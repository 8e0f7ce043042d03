// Package coordinator implements the spot status state machine. It is
// the single writer of spot status: the occupancy ledger and the
// reservation manager propose transitions but never touch status
// themselves.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/kafka"
	"github.com/jmorenov/plazacore/internal/repository"
)

type Coordinator interface {
	RequestOccupy(ctx context.Context, input OccupyInput) (*domain.Occupancy, error)
	RequestRelease(ctx context.Context, occupancyID uuid.UUID, exitAt time.Time, actor string) (*domain.Occupancy, error)
	RequestReserve(ctx context.Context, res *domain.Reservation, actor string) error
	RequestRelocate(ctx context.Context, occupancyID uuid.UUID, newSpot int, operatorID, reason string, at time.Time) (*domain.Movement, error)
	ConfirmReservation(ctx context.Context, code string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, code, reason, actor string) (*domain.Reservation, error)
	ConvertReservation(ctx context.Context, res *domain.Reservation, plate string, entryAt time.Time, override bool, actor string) (*domain.Occupancy, error)
	ExpireDueReservations(ctx context.Context, now time.Time) (int, error)
	SetMaintenance(ctx context.Context, facilityID int64, number int, enabled bool, reason, actor string) (domain.SpotStatus, error)
}

type Cache interface {
	ReleaseSpotHold(ctx context.Context, facilityID int64, number int) error
	InvalidateSpotBoard(ctx context.Context, facilityID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	spots        repository.SpotRepository
	occupancies  repository.OccupancyRepository
	reservations repository.ReservationRepository
	cache        Cache
	producer     Producer
	eventsTopic  string
	notifyTopic  string
	clock        clock.Clock
	logger       *zap.Logger
}

type Option func(*Service)

func WithNotificationsTopic(topic string) Option {
	return func(s *Service) { s.notifyTopic = topic }
}

func New(
	spots repository.SpotRepository,
	occupancies repository.OccupancyRepository,
	reservations repository.ReservationRepository,
	cache Cache,
	producer Producer,
	eventsTopic string,
	clk clock.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		spots:        spots,
		occupancies:  occupancies,
		reservations: reservations,
		cache:        cache,
		producer:     producer,
		eventsTopic:  eventsTopic,
		clock:        clk,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type OccupyInput struct {
	FacilityID int64
	SpotNumber *int
	Plate      string
	EntryAt    time.Time
	TariffRef  *string
	PaymentRef *string
	Actor      string
}

// RequestOccupy checks a vehicle in. With a spot number the spot must
// be Free and flips to Occupied atomically with the occupancy insert;
// without one the vehicle enters free-form and no spot is touched.
func (s *Service) RequestOccupy(ctx context.Context, input OccupyInput) (*domain.Occupancy, error) {
	occ := &domain.Occupancy{
		ID:         uuid.New(),
		FacilityID: input.FacilityID,
		SpotNumber: input.SpotNumber,
		Plate:      input.Plate,
		EntryAt:    input.EntryAt,
		TariffRef:  input.TariffRef,
		PaymentRef: input.PaymentRef,
	}

	var err error
	if input.SpotNumber == nil {
		err = s.occupancies.CreateFreeForm(ctx, occ)
	} else {
		err = s.occupancies.CreateWithSpot(ctx, occ, input.Actor)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, occ.Plate, kafka.SpotEvent{
		Type:        "vehicle_checked_in",
		FacilityID:  occ.FacilityID,
		SpotNumber:  spotOrZero(occ.SpotNumber),
		Plate:       occ.Plate,
		OccupancyID: occ.ID.String(),
		NewStatus:   string(domain.SpotStatusOccupied),
		Actor:       input.Actor,
		OccurredAt:  occ.EntryAt,
	})
	s.invalidateBoard(ctx, occ.FacilityID)
	return occ, nil
}

// RequestRelease checks a vehicle out. A held spot goes back to Free,
// or to Reserved when a confirmed reservation is already waiting for
// it (immediate reservation takeover).
func (s *Service) RequestRelease(ctx context.Context, occupancyID uuid.UUID, exitAt time.Time, actor string) (*domain.Occupancy, error) {
	occ, released, err := s.occupancies.Close(ctx, occupancyID, exitAt, actor)
	if err != nil {
		return occ, err
	}

	s.publish(ctx, occ.Plate, kafka.SpotEvent{
		Type:        "vehicle_checked_out",
		FacilityID:  occ.FacilityID,
		SpotNumber:  spotOrZero(occ.SpotNumber),
		Plate:       occ.Plate,
		OccupancyID: occ.ID.String(),
		PriorStatus: string(domain.SpotStatusOccupied),
		NewStatus:   string(released),
		Actor:       actor,
		OccurredAt:  exitAt,
	})
	s.invalidateBoard(ctx, occ.FacilityID)
	return occ, nil
}

// RequestReserve holds a Free spot as Reserved and creates the
// reservation in PendingPayment. The Free→Reserved audit row carries
// the booking time, not the hold window start.
func (s *Service) RequestReserve(ctx context.Context, res *domain.Reservation, actor string) error {
	res.CreatedAt = s.clock.Now()
	if err := s.reservations.CreateWithHold(ctx, res, actor); err != nil {
		return err
	}

	s.publish(ctx, res.Code, kafka.SpotEvent{
		Type:            "reservation_booked",
		FacilityID:      res.FacilityID,
		SpotNumber:      res.SpotNumber,
		Plate:           res.Plate,
		ReservationCode: res.Code,
		NewStatus:       string(domain.SpotStatusReserved),
		Actor:           actor,
		OccurredAt:      res.CreatedAt,
	})
	s.invalidateBoard(ctx, res.FacilityID)
	return nil
}

// RequestRelocate moves an active occupancy to a Free spot; old spot
// to Free, new spot to Occupied, one movement record, all atomic.
func (s *Service) RequestRelocate(ctx context.Context, occupancyID uuid.UUID, newSpot int, operatorID, reason string, at time.Time) (*domain.Movement, error) {
	mv, err := s.occupancies.Relocate(ctx, occupancyID, newSpot, operatorID, reason, at)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, mv.Plate, kafka.SpotEvent{
		Type:        "vehicle_relocated",
		FacilityID:  mv.FacilityID,
		SpotNumber:  mv.DestinationSpot,
		Plate:       mv.Plate,
		OccupancyID: mv.OccupancyID.String(),
		Actor:       operatorID,
		Reason:      reason,
		OccurredAt:  mv.OccurredAt,
	})
	s.invalidateBoard(ctx, mv.FacilityID)
	return mv, nil
}

// ConfirmReservation moves a pending reservation to Confirmed.
// Idempotent: confirming an already-confirmed reservation succeeds
// without a second transition.
func (s *Service) ConfirmReservation(ctx context.Context, code string) (*domain.Reservation, error) {
	updated, err := s.reservations.UpdateStatus(ctx, code,
		[]domain.ReservationStatus{domain.ReservationStatusPendingPayment, domain.ReservationStatusPendingConfirmation},
		domain.ReservationStatusConfirmed)
	if err == nil {
		s.publish(ctx, updated.Code, kafka.SpotEvent{
			Type:            "reservation_confirmed",
			FacilityID:      updated.FacilityID,
			SpotNumber:      updated.SpotNumber,
			Plate:           updated.Plate,
			ReservationCode: updated.Code,
			OccurredAt:      updated.UpdatedAt,
		})
		return updated, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Guard lost or unknown code: re-fetch to tell the cases apart.
	current, getErr := s.reservations.GetByCode(ctx, code)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == domain.ReservationStatusConfirmed {
		return current, nil
	}
	return nil, fmt.Errorf("confirm reservation %s in status %s: %w", code, current.Status, domain.ErrAlreadyClosed)
}

// CancelReservation is only permitted from the pending and Confirmed
// states. The spot is relaxed back to Free unless it has since become
// Occupied by unrelated means, in which case only the reservation
// state changes.
func (s *Service) CancelReservation(ctx context.Context, code, reason, actor string) (*domain.Reservation, error) {
	updated, err := s.reservations.UpdateStatus(ctx, code,
		[]domain.ReservationStatus{
			domain.ReservationStatusPendingPayment,
			domain.ReservationStatusPendingConfirmation,
			domain.ReservationStatusConfirmed,
		},
		domain.ReservationStatusCancelled)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		current, getErr := s.reservations.GetByCode(ctx, code)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == domain.ReservationStatusCancelled {
			return current, domain.ErrAlreadyClosed
		}
		return nil, fmt.Errorf("cancel reservation %s in status %s: %w", code, current.Status, domain.ErrAlreadyClosed)
	}

	s.relaxReservedSpot(ctx, updated, domain.EventCancelReservation, "reservation cancelled: "+reason, actor)
	s.publish(ctx, updated.Code, kafka.SpotEvent{
		Type:            "reservation_cancelled",
		FacilityID:      updated.FacilityID,
		SpotNumber:      updated.SpotNumber,
		Plate:           updated.Plate,
		ReservationCode: updated.Code,
		Actor:           actor,
		Reason:          reason,
		OccurredAt:      updated.UpdatedAt,
	})
	s.invalidateBoard(ctx, updated.FacilityID)
	return updated, nil
}

// ConvertReservation turns a confirmed reservation into an occupancy
// bound to the reserved spot. Plate validation and the override
// decision belong to the reservation manager; override conversions are
// logged here.
func (s *Service) ConvertReservation(ctx context.Context, res *domain.Reservation, plate string, entryAt time.Time, override bool, actor string) (*domain.Occupancy, error) {
	spot := res.SpotNumber
	occ := &domain.Occupancy{
		ID:         uuid.New(),
		FacilityID: res.FacilityID,
		SpotNumber: &spot,
		Plate:      plate,
		EntryAt:    entryAt,
	}
	if err := s.occupancies.CreateFromReservation(ctx, occ, res.Code, actor); err != nil {
		return nil, err
	}

	if override {
		s.logger.Info("operator override: reservation converted with a different vehicle",
			zap.String("reservation_code", res.Code),
			zap.String("reserved_plate", res.Plate),
			zap.String("actual_plate", plate),
			zap.String("operator", actor))
	}

	if s.cache != nil {
		_ = s.cache.ReleaseSpotHold(ctx, res.FacilityID, res.SpotNumber)
	}
	s.publish(ctx, res.Code, kafka.SpotEvent{
		Type:            "reservation_converted",
		FacilityID:      res.FacilityID,
		SpotNumber:      res.SpotNumber,
		Plate:           plate,
		OccupancyID:     occ.ID.String(),
		ReservationCode: res.Code,
		PriorStatus:     string(domain.SpotStatusReserved),
		NewStatus:       string(domain.SpotStatusOccupied),
		Actor:           actor,
		Reason:          overrideReason(override),
		OccurredAt:      entryAt,
	})
	s.invalidateBoard(ctx, res.FacilityID)
	return occ, nil
}

// ExpireDueReservations sweeps confirmed reservations whose hold plus
// grace has elapsed. Re-entrant and idempotent: the guarded update
// matches each row at most once, and the spot flip only ever relaxes
// Reserved to Free — a spot meanwhile Occupied or in Maintenance is
// left alone.
func (s *Service) ExpireDueReservations(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.reservations.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}

	for i := range expired {
		res := &expired[i]
		s.relaxReservedSpot(ctx, res, domain.EventExpireReservation, "reservation "+res.Code+" expired", "sweeper")
		s.publish(ctx, res.Code, kafka.SpotEvent{
			Type:            "reservation_expired",
			FacilityID:      res.FacilityID,
			SpotNumber:      res.SpotNumber,
			Plate:           res.Plate,
			ReservationCode: res.Code,
			PriorStatus:     string(domain.SpotStatusReserved),
			NewStatus:       string(domain.SpotStatusFree),
			OccurredAt:      now,
		})
		s.invalidateBoard(ctx, res.FacilityID)
	}
	return len(expired), nil
}

// SetMaintenance blocks or unblocks a spot. A spot with a live vehicle
// or a live hold cannot be blocked; the transition guard backs up the
// pre-checks under concurrency.
func (s *Service) SetMaintenance(ctx context.Context, facilityID int64, number int, enabled bool, reason, actor string) (domain.SpotStatus, error) {
	ev := domain.EventDisableMaintenance
	if enabled {
		if _, err := s.occupancies.FindActiveBySpot(ctx, facilityID, number); err == nil {
			return "", domain.ErrSpotOccupied
		} else if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		res, err := s.reservations.FindActiveBySpot(ctx, facilityID, number)
		if err == nil && (res.Status == domain.ReservationStatusConfirmed || res.Status == domain.ReservationStatusActive) {
			return "", domain.ErrSpotHasActiveReservation
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		ev = domain.EventEnableMaintenance
	}

	at := s.clock.Now()
	next, err := s.spots.Transition(ctx, facilityID, number, ev, reason, actor, at)
	if err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			s.logger.Warn("maintenance transition rejected",
				zap.Int64("facility_id", terr.FacilityID),
				zap.Int("spot", terr.SpotNumber),
				zap.String("from", string(terr.From)),
				zap.String("event", string(terr.Event)))
		}
		return "", err
	}

	eventType := "maintenance_disabled"
	if enabled {
		eventType = "maintenance_enabled"
	}
	s.publish(ctx, fmt.Sprintf("%d:%d", facilityID, number), kafka.SpotEvent{
		Type:       eventType,
		FacilityID: facilityID,
		SpotNumber: number,
		NewStatus:  string(next),
		Actor:      actor,
		Reason:     reason,
		OccurredAt: at,
	})
	s.invalidateBoard(ctx, facilityID)
	return next, nil
}

// relaxReservedSpot flips Reserved back to Free after an expiry or
// cancellation. A lost race (the spot is no longer Reserved because an
// operator already acted on it) is success, not an error.
func (s *Service) relaxReservedSpot(ctx context.Context, res *domain.Reservation, ev domain.Event, reason, actor string) {
	if _, err := s.spots.Transition(ctx, res.FacilityID, res.SpotNumber, ev, reason, actor, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("spot no longer reserved, nothing to relax",
				zap.Int64("facility_id", res.FacilityID),
				zap.Int("spot", res.SpotNumber),
				zap.String("reservation_code", res.Code))
		} else {
			s.logger.Error("release reserved spot", zap.Error(err),
				zap.Int64("facility_id", res.FacilityID),
				zap.Int("spot", res.SpotNumber))
		}
	}
	if s.cache != nil {
		_ = s.cache.ReleaseSpotHold(ctx, res.FacilityID, res.SpotNumber)
	}
}

func (s *Service) publish(ctx context.Context, key string, event kafka.SpotEvent) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, key, event); err != nil {
		s.logger.Warn("publish spot event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if s.notifyTopic != "" {
		if err := s.producer.Publish(ctx, s.notifyTopic, key, event); err != nil {
			s.logger.Warn("publish notification", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

func (s *Service) invalidateBoard(ctx context.Context, facilityID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateSpotBoard(ctx, facilityID)
	}
}

func spotOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func overrideReason(override bool) string {
	if override {
		return "operator override: different vehicle"
	}
	return ""
}

var _ Coordinator = (*Service)(nil)
