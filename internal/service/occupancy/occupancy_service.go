// Package occupancy is the occupancy ledger: vehicle check-in,
// check-out and relocation. Spot status flips are delegated to the
// coordinator; this service never writes status itself.
package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/repository"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
)

type LedgerUseCase interface {
	Checkin(ctx context.Context, input CheckinInput) (*domain.Occupancy, error)
	Checkout(ctx context.Context, id uuid.UUID, exitAt *time.Time, actor string) (*domain.Occupancy, error)
	Relocate(ctx context.Context, id uuid.UUID, newSpot int, operatorID, reason string) (*domain.Movement, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Occupancy, error)
	ActiveByPlate(ctx context.Context, facilityID int64, plate string) (*domain.Occupancy, error)
	ActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Occupancy, error)
}

type CheckinInput struct {
	FacilityID int64
	SpotNumber *int
	Plate      string
	EntryAt    *time.Time
	TariffRef  *string
	PaymentRef *string
	Actor      string
}

type Service struct {
	coord  coordinator.Coordinator
	repo   repository.OccupancyRepository
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(coord coordinator.Coordinator, repo repository.OccupancyRepository, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{coord: coord, repo: repo, clock: clk, logger: logger}
}

func (s *Service) Checkin(ctx context.Context, input CheckinInput) (*domain.Occupancy, error) {
	if input.Plate == "" {
		return nil, errors.New("vehicle plate is required")
	}
	if input.SpotNumber != nil && *input.SpotNumber <= 0 {
		return nil, errors.New("spot number must be positive")
	}

	entryAt := s.clock.Now()
	if input.EntryAt != nil {
		entryAt = *input.EntryAt
	}

	occ, err := s.coord.RequestOccupy(ctx, coordinator.OccupyInput{
		FacilityID: input.FacilityID,
		SpotNumber: input.SpotNumber,
		Plate:      input.Plate,
		EntryAt:    entryAt,
		TariffRef:  input.TariffRef,
		PaymentRef: input.PaymentRef,
		Actor:      input.Actor,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vehicle checked in",
		zap.Int64("facility_id", occ.FacilityID),
		zap.String("plate", occ.Plate),
		zap.Intp("spot", occ.SpotNumber))
	return occ, nil
}

// Checkout closes a stay. ErrAlreadyClosed is surfaced distinctly so a
// retrying caller can treat it as idempotent success.
func (s *Service) Checkout(ctx context.Context, id uuid.UUID, exitAt *time.Time, actor string) (*domain.Occupancy, error) {
	at := s.clock.Now()
	if exitAt != nil {
		at = *exitAt
	}
	return s.coord.RequestRelease(ctx, id, at, actor)
}

func (s *Service) Relocate(ctx context.Context, id uuid.UUID, newSpot int, operatorID, reason string) (*domain.Movement, error) {
	if newSpot <= 0 {
		return nil, errors.New("spot number must be positive")
	}
	if operatorID == "" {
		return nil, errors.New("operator id is required")
	}
	return s.coord.RequestRelocate(ctx, id, newSpot, operatorID, reason, s.clock.Now())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Occupancy, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ActiveByPlate(ctx context.Context, facilityID int64, plate string) (*domain.Occupancy, error) {
	return s.repo.FindActiveByPlate(ctx, facilityID, plate)
}

func (s *Service) ActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Occupancy, error) {
	return s.repo.FindActiveBySpot(ctx, facilityID, number)
}

var _ LedgerUseCase = (*Service)(nil)
