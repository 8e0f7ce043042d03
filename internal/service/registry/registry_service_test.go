package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/internal/domain"
)

type MockSpotRepository struct {
	mock.Mock
}

func (m *MockSpotRepository) ProvisionZone(ctx context.Context, facilityID int64, zone *string, category domain.VehicleCategory, fromNumber, toNumber int) (int64, error) {
	args := m.Called(ctx, facilityID, zone, category, fromNumber, toNumber)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSpotRepository) ResetFreeSpots(ctx context.Context, facilityID int64, zone *string) (int64, error) {
	args := m.Called(ctx, facilityID, zone)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSpotRepository) Get(ctx context.Context, facilityID int64, number int) (*domain.Spot, error) {
	args := m.Called(ctx, facilityID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Spot), args.Error(1)
}

func (m *MockSpotRepository) ListByFacility(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Spot), args.Error(1)
}

func (m *MockSpotRepository) Transition(ctx context.Context, facilityID int64, number int, ev domain.Event, reason, actor string, at time.Time) (domain.SpotStatus, error) {
	args := m.Called(ctx, facilityID, number, ev, reason, actor, at)
	return args.Get(0).(domain.SpotStatus), args.Error(1)
}

func (m *MockSpotRepository) StatusLog(ctx context.Context, facilityID int64, number int, limit int) ([]domain.StatusChange, error) {
	args := m.Called(ctx, facilityID, number, limit)
	return args.Get(0).([]domain.StatusChange), args.Error(1)
}

type MockBoardCache struct {
	mock.Mock
}

func (m *MockBoardCache) GetSpotBoard(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Spot), args.Error(1)
}

func (m *MockBoardCache) SetSpotBoard(ctx context.Context, facilityID int64, spots []domain.Spot) error {
	args := m.Called(ctx, facilityID, spots)
	return args.Error(0)
}

func (m *MockBoardCache) InvalidateSpotBoard(ctx context.Context, facilityID int64) error {
	args := m.Called(ctx, facilityID)
	return args.Error(0)
}

func TestBoard_CacheMissFillsCache(t *testing.T) {
	repo := &MockSpotRepository{}
	cache := &MockBoardCache{}
	svc := NewService(repo, cache, zap.NewNop())

	ctx := context.Background()
	spots := []domain.Spot{
		{FacilityID: 1, Number: 1, Category: domain.VehicleCategoryCar, Status: domain.SpotStatusFree},
		{FacilityID: 1, Number: 2, Category: domain.VehicleCategoryCar, Status: domain.SpotStatusOccupied},
	}

	cache.On("GetSpotBoard", ctx, int64(1)).Return(nil, nil).Once()
	repo.On("ListByFacility", ctx, int64(1)).Return(spots, nil).Once()
	cache.On("SetSpotBoard", ctx, int64(1), spots).Return(nil).Once()

	got, err := svc.Board(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, spots, got)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestBoard_CacheHitSkipsRepository(t *testing.T) {
	repo := &MockSpotRepository{}
	cache := &MockBoardCache{}
	svc := NewService(repo, cache, zap.NewNop())

	ctx := context.Background()
	spots := []domain.Spot{{FacilityID: 1, Number: 1, Status: domain.SpotStatusFree}}

	cache.On("GetSpotBoard", ctx, int64(1)).Return(spots, nil).Once()

	got, err := svc.Board(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, spots, got)
	repo.AssertNotCalled(t, "ListByFacility")
}

func TestBoard_NoCache(t *testing.T) {
	repo := &MockSpotRepository{}
	svc := NewService(repo, nil, zap.NewNop())

	ctx := context.Background()
	spots := []domain.Spot{{FacilityID: 1, Number: 1, Status: domain.SpotStatusFree}}
	repo.On("ListByFacility", ctx, int64(1)).Return(spots, nil).Once()

	got, err := svc.Board(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, spots, got)
}

func TestProvision_Success(t *testing.T) {
	repo := &MockSpotRepository{}
	cache := &MockBoardCache{}
	svc := NewService(repo, cache, zap.NewNop())

	ctx := context.Background()
	zone := "B"

	repo.On("ProvisionZone", ctx, int64(1), &zone, domain.VehicleCategoryCar, 1, 50).
		Return(int64(50), nil).Once()
	cache.On("InvalidateSpotBoard", ctx, int64(1)).Return(nil).Once()

	created, err := svc.Provision(ctx, ProvisionInput{
		FacilityID: 1,
		Zone:       &zone,
		Category:   domain.VehicleCategoryCar,
		FromNumber: 1,
		ToNumber:   50,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(50), created)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestProvision_ValidationErrors(t *testing.T) {
	svc := NewService(nil, nil, zap.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name        string
		input       ProvisionInput
		expectedErr string
	}{
		{
			name:        "zero from number",
			input:       ProvisionInput{FacilityID: 1, Category: domain.VehicleCategoryCar, FromNumber: 0, ToNumber: 10},
			expectedErr: "invalid spot number range",
		},
		{
			name:        "range inverted",
			input:       ProvisionInput{FacilityID: 1, Category: domain.VehicleCategoryCar, FromNumber: 10, ToNumber: 5},
			expectedErr: "invalid spot number range",
		},
		{
			name:        "unknown category",
			input:       ProvisionInput{FacilityID: 1, Category: "BICYCLE", FromNumber: 1, ToNumber: 10},
			expectedErr: "unknown vehicle category",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			created, err := svc.Provision(ctx, tc.input)
			assert.Error(t, err)
			assert.Zero(t, created)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestReset(t *testing.T) {
	repo := &MockSpotRepository{}
	cache := &MockBoardCache{}
	svc := NewService(repo, cache, zap.NewNop())

	ctx := context.Background()
	repo.On("ResetFreeSpots", ctx, int64(1), (*string)(nil)).Return(int64(12), nil).Once()
	cache.On("InvalidateSpotBoard", ctx, int64(1)).Return(nil).Once()

	deleted, err := svc.Reset(ctx, 1, nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	repo.AssertExpectations(t)
}

func TestReset_RepositoryError(t *testing.T) {
	repo := &MockSpotRepository{}
	cache := &MockBoardCache{}
	svc := NewService(repo, cache, zap.NewNop())

	ctx := context.Background()
	expectedErr := errors.New("database error")
	repo.On("ResetFreeSpots", ctx, int64(1), (*string)(nil)).Return(int64(0), expectedErr).Once()

	deleted, err := svc.Reset(ctx, 1, nil)

	assert.Zero(t, deleted)
	assert.Equal(t, expectedErr, err)
	cache.AssertNotCalled(t, "InvalidateSpotBoard")
}

func TestStatusLog_LimitClamped(t *testing.T) {
	repo := &MockSpotRepository{}
	svc := NewService(repo, nil, zap.NewNop())

	ctx := context.Background()
	changes := []domain.StatusChange{{Prior: domain.SpotStatusFree, Next: domain.SpotStatusOccupied}}

	repo.On("StatusLog", ctx, int64(1), 4, 100).Return(changes, nil).Times(2)
	repo.On("StatusLog", ctx, int64(1), 4, 250).Return(changes, nil).Once()

	_, err := svc.StatusLog(ctx, 1, 4, 0)
	assert.NoError(t, err)

	_, err = svc.StatusLog(ctx, 1, 4, 9999)
	assert.NoError(t, err)

	_, err = svc.StatusLog(ctx, 1, 4, 250)
	assert.NoError(t, err)

	repo.AssertExpectations(t)
}
