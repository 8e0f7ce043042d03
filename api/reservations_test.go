package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
	"github.com/jmorenov/plazacore/internal/service/reservation"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type MockManagerUseCase struct {
	mock.Mock
}

func (m *MockManagerUseCase) Book(ctx context.Context, input reservation.BookInput) (*domain.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockManagerUseCase) Confirm(ctx context.Context, code string) (*domain.Reservation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockManagerUseCase) Cancel(ctx context.Context, code, reason, actor string) (*domain.Reservation, error) {
	args := m.Called(ctx, code, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockManagerUseCase) ConvertToOccupancy(ctx context.Context, input reservation.ConvertInput) (*domain.Occupancy, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Occupancy), args.Error(1)
}

func (m *MockManagerUseCase) LookupActive(ctx context.Context, facilityID int64, number int) (*domain.Reservation, error) {
	args := m.Called(ctx, facilityID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockManagerUseCase) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) RequestOccupy(ctx context.Context, input coordinator.OccupyInput) (*domain.Occupancy, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Occupancy), args.Error(1)
}

func (m *MockCoordinator) RequestRelease(ctx context.Context, occupancyID uuid.UUID, exitAt time.Time, actor string) (*domain.Occupancy, error) {
	args := m.Called(ctx, occupancyID, exitAt, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Occupancy), args.Error(1)
}

func (m *MockCoordinator) RequestReserve(ctx context.Context, res *domain.Reservation, actor string) error {
	args := m.Called(ctx, res, actor)
	return args.Error(0)
}

func (m *MockCoordinator) RequestRelocate(ctx context.Context, occupancyID uuid.UUID, newSpot int, operatorID, reason string, at time.Time) (*domain.Movement, error) {
	args := m.Called(ctx, occupancyID, newSpot, operatorID, reason, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Movement), args.Error(1)
}

func (m *MockCoordinator) ConfirmReservation(ctx context.Context, code string) (*domain.Reservation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCoordinator) CancelReservation(ctx context.Context, code, reason, actor string) (*domain.Reservation, error) {
	args := m.Called(ctx, code, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCoordinator) ConvertReservation(ctx context.Context, res *domain.Reservation, plate string, entryAt time.Time, override bool, actor string) (*domain.Occupancy, error) {
	args := m.Called(ctx, res, plate, entryAt, override, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Occupancy), args.Error(1)
}

func (m *MockCoordinator) ExpireDueReservations(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockCoordinator) SetMaintenance(ctx context.Context, facilityID int64, number int, enabled bool, reason, actor string) (domain.SpotStatus, error) {
	args := m.Called(ctx, facilityID, number, enabled, reason, actor)
	return args.Get(0).(domain.SpotStatus), args.Error(1)
}

func TestReservationHandler_book(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	holdStart := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	holdEnd := holdStart.Add(2 * time.Hour)
	body, _ := json.Marshal(bookRequest{
		FacilityID:  1,
		SpotNumber:  4,
		Plate:       "AB123CD",
		DriverID:    "driver-7",
		HoldStart:   holdStart.Format(time.RFC3339),
		HoldEnd:     holdEnd.Format(time.RFC3339),
		AmountCents: 1500,
		Actor:       "app",
	})
	c.Request = httptest.NewRequest("POST", "/reservations/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	res := &domain.Reservation{
		Code:       "KXWQ23RP",
		FacilityID: 1,
		SpotNumber: 4,
		Plate:      "AB123CD",
		DriverID:   "driver-7",
		HoldStart:  holdStart,
		HoldEnd:    holdEnd,
		Status:     domain.ReservationStatusPendingPayment,
	}
	mockService.On("Book", c.Request.Context(), mock.MatchedBy(func(in reservation.BookInput) bool {
		return in.SpotNumber == 4 && in.HoldStart.Equal(holdStart) && in.HoldEnd.Equal(holdEnd)
	})).Return(res, nil)

	handler.book(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response reservationResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "KXWQ23RP", response.Code)
	assert.Equal(t, string(domain.ReservationStatusPendingPayment), response.Status)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_book_invalidHoldStart(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(bookRequest{
		FacilityID: 1,
		SpotNumber: 4,
		HoldStart:  "yesterday",
		HoldEnd:    time.Now().Format(time.RFC3339),
	})
	c.Request = httptest.NewRequest("POST", "/reservations/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.book(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Book")
}

func TestReservationHandler_book_spotUnavailable(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	holdStart := time.Now().Add(time.Hour)
	body, _ := json.Marshal(bookRequest{
		FacilityID: 1,
		SpotNumber: 4,
		Plate:      "AB123CD",
		DriverID:   "driver-7",
		HoldStart:  holdStart.Format(time.RFC3339),
		HoldEnd:    holdStart.Add(time.Hour).Format(time.RFC3339),
	})
	c.Request = httptest.NewRequest("POST", "/reservations/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Book", c.Request.Context(), mock.Anything).Return(nil, domain.ErrSpotUnavailable)

	handler.book(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReservationHandler_get_notFound(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "code", Value: "MISSING1"}}
	c.Request = httptest.NewRequest("GET", "/reservations/MISSING1", nil)

	mockService.On("GetByCode", c.Request.Context(), "MISSING1").Return(nil, domain.ErrNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservationHandler_confirm(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "code", Value: "KXWQ23RP"}}
	c.Request = httptest.NewRequest("PUT", "/reservations/KXWQ23RP/confirm", nil)

	res := &domain.Reservation{Code: "KXWQ23RP", Status: domain.ReservationStatusConfirmed}
	mockService.On("Confirm", c.Request.Context(), "KXWQ23RP").Return(res, nil)

	handler.confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response reservationResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusConfirmed), response.Status)
}

func TestReservationHandler_cancel_alreadyClosed(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "code", Value: "KXWQ23RP"}}
	body, _ := json.Marshal(cancelRequest{Reason: "driver request", Actor: "operator-9"})
	c.Request = httptest.NewRequest("DELETE", "/reservations/KXWQ23RP", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Cancel", c.Request.Context(), "KXWQ23RP", "driver request", "operator-9").
		Return(nil, domain.ErrAlreadyClosed)

	handler.cancel(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReservationHandler_convert_vehicleMismatch(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "code", Value: "KXWQ23RP"}}
	body, _ := json.Marshal(convertRequest{Plate: "ZZ999ZZ"})
	c.Request = httptest.NewRequest("POST", "/reservations/KXWQ23RP/convert", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ConvertToOccupancy", c.Request.Context(), mock.Anything).
		Return(nil, domain.ErrVehicleMismatch)

	handler.convert(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReservationHandler_convert(t *testing.T) {
	mockService := &MockManagerUseCase{}
	handler := NewReservationHandler(mockService, nil, fixedClock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "code", Value: "KXWQ23RP"}}
	body, _ := json.Marshal(convertRequest{Plate: "AB123CD", Actor: "gate-1"})
	c.Request = httptest.NewRequest("POST", "/reservations/KXWQ23RP/convert", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	spot := 4
	occ := &domain.Occupancy{
		ID:         uuid.New(),
		FacilityID: 1,
		SpotNumber: &spot,
		Plate:      "AB123CD",
		EntryAt:    time.Now(),
	}
	mockService.On("ConvertToOccupancy", c.Request.Context(), mock.MatchedBy(func(in reservation.ConvertInput) bool {
		return in.Code == "KXWQ23RP" && in.Plate == "AB123CD" && !in.OperatorOverride
	})).Return(occ, nil)

	handler.convert(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response occupancyResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, occ.ID.String(), response.ID)
}

func TestReservationHandler_expireDue(t *testing.T) {
	mockCoord := &MockCoordinator{}
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	handler := NewReservationHandler(nil, mockCoord, fixedClock{now: now})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/reservations/expire-due", nil)

	// The sweep runs on the facility clock, not the host's.
	mockCoord.On("ExpireDueReservations", c.Request.Context(), now).
		Return(3, nil)

	handler.expireDue(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]int
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 3, response["expired"])
}
