package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reservation-service/internal/api"
	"reservation-service/internal/models"
)

// MockReaderService mocks the read-side service
type MockReaderService struct {
	mock.Mock
}

func (m *MockReaderService) GetAvailability(ctx context.Context, listingID string) (*models.AvailabilityResponse, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AvailabilityResponse), args.Error(1)
}

func (m *MockReaderService) GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockReaderService) ListByBuyer(ctx context.Context, buyerID string) ([]models.Reservation, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReaderService) ListBySeller(ctx context.Context, sellerID string) ([]models.Reservation, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *MockReaderService) ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func getRequest(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReaderHandler_GetAvailability_Success(t *testing.T) {
	// Arrange
	reader := new(MockReaderService)
	reader.On("GetAvailability", mock.Anything, "lst-1").Return(&models.AvailabilityResponse{
		ListingID:    "lst-1",
		AvailableQty: 8,
		MinimumQty:   1,
		Orderable:    true,
		CacheHit:     true,
		LastUpdated:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	// Act
	w := getRequest(router, "/api/v1/listings/lst-1/availability")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.AvailabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.AvailableQty)
	assert.True(t, resp.CacheHit)
	reader.AssertExpectations(t)
}

func TestReaderHandler_GetAvailability_NotFound(t *testing.T) {
	reader := new(MockReaderService)
	reader.On("GetAvailability", mock.Anything, "lst-missing").Return(nil, models.ErrListingNotFound)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/listings/lst-missing/availability")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem models.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
}

func TestReaderHandler_GetReservation_Success(t *testing.T) {
	reader := new(MockReaderService)
	reservation := sampleReservation()
	reader.On("GetReservation", mock.Anything, reservation.ReservationID).Return(reservation, nil)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/reservations/"+reservation.ReservationID.String())

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, reservation.ReservationID, resp.ReservationID)
}

func TestReaderHandler_GetReservation_InvalidID(t *testing.T) {
	reader := new(MockReaderService)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/reservations/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	reader.AssertNotCalled(t, "GetReservation")
}

func TestReaderHandler_GetReservation_NotFound(t *testing.T) {
	reader := new(MockReaderService)
	reservationID := uuid.New()
	reader.On("GetReservation", mock.Anything, reservationID).Return(nil, models.ErrReservationNotFound)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/reservations/"+reservationID.String())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReaderHandler_ListByBuyer(t *testing.T) {
	reader := new(MockReaderService)
	reader.On("ListByBuyer", mock.Anything, "buyer-1").Return([]models.Reservation{*sampleReservation(), *sampleReservation()}, nil)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/buyers/buyer-1/reservations")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []models.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestReaderHandler_ListByListing(t *testing.T) {
	reader := new(MockReaderService)
	reader.On("ListByListing", mock.Anything, "lst-1").Return([]models.Reservation{*sampleReservation()}, nil)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/listings/lst-1/reservations")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []models.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
	assert.Equal(t, "lst-1", resp[0].ListingID)
}

func TestReaderHandler_ListBySeller_Empty(t *testing.T) {
	reader := new(MockReaderService)
	reader.On("ListBySeller", mock.Anything, "seller-1").Return([]models.Reservation{}, nil)
	router := api.NewReaderHandler(reader).SetupReaderRoutes()

	w := getRequest(router, "/api/v1/sellers/seller-1/reservations")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
