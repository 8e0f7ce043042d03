// Package movement is the movement recorder: the append-only audit
// trail of spot-to-spot relocations.
package movement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/repository"
)

type RecorderUseCase interface {
	Record(ctx context.Context, mv *domain.Movement) (*domain.Movement, error)
	HistoryForStay(ctx context.Context, occupancyID uuid.UUID) ([]domain.Movement, error)
}

type Service struct {
	repo   repository.MovementRepository
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(repo repository.MovementRepository, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

// Record appends a movement entry. There is no update or delete.
func (s *Service) Record(ctx context.Context, mv *domain.Movement) (*domain.Movement, error) {
	if mv.DestinationSpot <= 0 {
		return nil, errors.New("destination spot must be positive")
	}
	if mv.OperatorID == "" {
		return nil, errors.New("operator id is required")
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = s.clock.Now()
	}
	if err := s.repo.Record(ctx, mv); err != nil {
		return nil, err
	}
	return mv, nil
}

// HistoryForStay returns the stay's movements newest first for
// display; the stored ordering is timestamp ascending.
func (s *Service) HistoryForStay(ctx context.Context, occupancyID uuid.UUID) ([]domain.Movement, error) {
	movements, err := s.repo.HistoryForStay(ctx, occupancyID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
		movements[i], movements[j] = movements[j], movements[i]
	}
	return movements, nil
}

var _ RecorderUseCase = (*Service)(nil)
