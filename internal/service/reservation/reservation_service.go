// Package reservation is the reservation manager: booking, payment
// confirmation, cancellation and conversion of holds into occupancy.
package reservation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/repository"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
)

type ManagerUseCase interface {
	Book(ctx context.Context, input BookInput) (*domain.Reservation, error)
	Confirm(ctx context.Context, code string) (*domain.Reservation, error)
	Cancel(ctx context.Context, code, reason, actor string) (*domain.Reservation, error)
	ConvertToOccupancy(ctx context.Context, input ConvertInput) (*domain.Occupancy, error)
	LookupActive(ctx context.Context, facilityID int64, number int) (*domain.Reservation, error)
	GetByCode(ctx context.Context, code string) (*domain.Reservation, error)
}

type Cache interface {
	AcquireSpotHold(ctx context.Context, facilityID int64, number int, ttl time.Duration) (bool, error)
	ReleaseSpotHold(ctx context.Context, facilityID int64, number int) error
}

type BookInput struct {
	FacilityID   int64
	SpotNumber   int
	Plate        string
	DriverID     string
	HoldStart    time.Time
	HoldEnd      time.Time
	AmountCents  int64
	GraceMinutes *int
	Actor        string
}

type ConvertInput struct {
	Code             string
	Plate            string
	EntryAt          *time.Time
	OperatorOverride bool
	Actor            string
}

type Service struct {
	coord        coordinator.Coordinator
	repo         repository.ReservationRepository
	cache        Cache
	clock        clock.Clock
	holdTTL      time.Duration
	defaultGrace int
	logger       *zap.Logger
}

func NewService(
	coord coordinator.Coordinator,
	repo repository.ReservationRepository,
	cache Cache,
	clk clock.Clock,
	holdTTL time.Duration,
	defaultGraceMinutes int,
	logger *zap.Logger,
) *Service {
	return &Service{
		coord:        coord,
		repo:         repo,
		cache:        cache,
		clock:        clk,
		holdTTL:      holdTTL,
		defaultGrace: defaultGraceMinutes,
		logger:       logger,
	}
}

// Book validates the hold window, generates a shareable code and asks
// the coordinator to lock the spot. The redis hold is a fast-fail
// front door; the booking transaction is what actually decides.
func (s *Service) Book(ctx context.Context, input BookInput) (*domain.Reservation, error) {
	if input.SpotNumber <= 0 {
		return nil, errors.New("spot number must be positive")
	}
	if input.Plate == "" {
		return nil, errors.New("vehicle plate is required")
	}
	if input.DriverID == "" {
		return nil, errors.New("driver id is required")
	}
	if !input.HoldEnd.After(input.HoldStart) {
		return nil, errors.New("hold end must be after hold start")
	}
	if input.HoldStart.Before(s.clock.Now()) {
		return nil, errors.New("hold cannot start in the past")
	}

	grace := s.defaultGrace
	if input.GraceMinutes != nil {
		grace = *input.GraceMinutes
	}

	locked := false
	if s.cache != nil {
		ok, err := s.cache.AcquireSpotHold(ctx, input.FacilityID, input.SpotNumber, s.holdTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrSpotUnavailable
		}
		locked = true
	}

	res := &domain.Reservation{
		FacilityID:   input.FacilityID,
		SpotNumber:   input.SpotNumber,
		Plate:        input.Plate,
		DriverID:     input.DriverID,
		HoldStart:    input.HoldStart,
		HoldEnd:      input.HoldEnd,
		AmountCents:  input.AmountCents,
		GraceMinutes: grace,
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		res.Code = newCode()
		err = s.coord.RequestReserve(ctx, res, input.Actor)
		if !errors.Is(err, repository.ErrCodeTaken) {
			break
		}
	}
	if err != nil {
		if locked {
			_ = s.cache.ReleaseSpotHold(ctx, input.FacilityID, input.SpotNumber)
		}
		return nil, err
	}

	s.logger.Info("reservation booked",
		zap.String("code", res.Code),
		zap.Int64("facility_id", res.FacilityID),
		zap.Int("spot", res.SpotNumber),
		zap.String("plate", res.Plate))
	return res, nil
}

func (s *Service) Confirm(ctx context.Context, code string) (*domain.Reservation, error) {
	return s.coord.ConfirmReservation(ctx, code)
}

func (s *Service) Cancel(ctx context.Context, code, reason, actor string) (*domain.Reservation, error) {
	return s.coord.CancelReservation(ctx, code, reason, actor)
}

// ConvertToOccupancy checks the arriving vehicle in on the reserved
// spot. The plate must match the reservation unless an operator
// explicitly overrides, which is logged.
func (s *Service) ConvertToOccupancy(ctx context.Context, input ConvertInput) (*domain.Occupancy, error) {
	res, err := s.repo.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case domain.ReservationStatusConfirmed:
	case domain.ReservationStatusExpired, domain.ReservationStatusCancelled,
		domain.ReservationStatusActive, domain.ReservationStatusCompleted:
		return nil, fmt.Errorf("reservation %s is %s: %w", res.Code, res.Status, domain.ErrAlreadyClosed)
	default:
		return nil, fmt.Errorf("reservation %s is %s, not confirmed: %w", res.Code, res.Status, domain.ErrInvalidTransition)
	}
	if input.Plate == "" {
		return nil, errors.New("vehicle plate is required")
	}
	if input.Plate != res.Plate && !input.OperatorOverride {
		return nil, fmt.Errorf("reservation %s bound to plate %s: %w", res.Code, res.Plate, domain.ErrVehicleMismatch)
	}

	entryAt := s.clock.Now()
	if input.EntryAt != nil {
		entryAt = *input.EntryAt
	}
	override := input.Plate != res.Plate
	return s.coord.ConvertReservation(ctx, res, input.Plate, entryAt, override, input.Actor)
}

// LookupActive returns the one reservation holding the spot, if any.
func (s *Service) LookupActive(ctx context.Context, facilityID int64, number int) (*domain.Reservation, error) {
	return s.repo.FindActiveBySpot(ctx, facilityID, number)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	return s.repo.GetByCode(ctx, code)
}

// codeAlphabet avoids ambiguous characters; codes are read over the
// phone and typed at the gate.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

func newCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

var _ ManagerUseCase = (*Service)(nil)
