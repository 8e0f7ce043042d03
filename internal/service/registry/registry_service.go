// Package registry owns the set of spots for a facility: provisioning,
// capacity reset and the dashboard board. Status is read-only here;
// all mutations go through the coordinator.
package registry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/repository"
)

type RegistryUseCase interface {
	Board(ctx context.Context, facilityID int64) ([]domain.Spot, error)
	Get(ctx context.Context, facilityID int64, number int) (*domain.Spot, error)
	Provision(ctx context.Context, input ProvisionInput) (int64, error)
	Reset(ctx context.Context, facilityID int64, zone *string) (int64, error)
	StatusLog(ctx context.Context, facilityID int64, number, limit int) ([]domain.StatusChange, error)
}

type Cache interface {
	GetSpotBoard(ctx context.Context, facilityID int64) ([]domain.Spot, error)
	SetSpotBoard(ctx context.Context, facilityID int64, spots []domain.Spot) error
	InvalidateSpotBoard(ctx context.Context, facilityID int64) error
}

type ProvisionInput struct {
	FacilityID int64
	Zone       *string
	Category   domain.VehicleCategory
	FromNumber int
	ToNumber   int
}

type Service struct {
	repo   repository.SpotRepository
	cache  Cache
	logger *zap.Logger
}

func NewService(repo repository.SpotRepository, cache Cache, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Board is the facility dashboard: every spot with its current status.
func (s *Service) Board(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSpotBoard(ctx, facilityID); err == nil && cached != nil {
			return cached, nil
		}
	}

	spots, err := s.repo.ListByFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetSpotBoard(ctx, facilityID, spots)
	}
	return spots, nil
}

func (s *Service) Get(ctx context.Context, facilityID int64, number int) (*domain.Spot, error) {
	return s.repo.Get(ctx, facilityID, number)
}

func (s *Service) Provision(ctx context.Context, input ProvisionInput) (int64, error) {
	if input.FromNumber <= 0 || input.ToNumber < input.FromNumber {
		return 0, errors.New("invalid spot number range")
	}
	switch input.Category {
	case domain.VehicleCategoryCar, domain.VehicleCategoryMotorcycle, domain.VehicleCategoryVan:
	default:
		return 0, errors.New("unknown vehicle category")
	}

	created, err := s.repo.ProvisionZone(ctx, input.FacilityID, input.Zone, input.Category, input.FromNumber, input.ToNumber)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateSpotBoard(ctx, input.FacilityID)
	}
	s.logger.Info("spots provisioned",
		zap.Int64("facility_id", input.FacilityID),
		zap.Int64("created", created),
		zap.Stringp("zone", input.Zone))
	return created, nil
}

// Reset removes Free spots for re-provisioning. Spots with live state
// are never deleted.
func (s *Service) Reset(ctx context.Context, facilityID int64, zone *string) (int64, error) {
	deleted, err := s.repo.ResetFreeSpots(ctx, facilityID, zone)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateSpotBoard(ctx, facilityID)
	}
	return deleted, nil
}

func (s *Service) StatusLog(ctx context.Context, facilityID int64, number, limit int) ([]domain.StatusChange, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.StatusLog(ctx, facilityID, number, limit)
}

var _ RegistryUseCase = (*Service)(nil)
