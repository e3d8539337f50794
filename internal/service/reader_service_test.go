package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reservation-service/internal/models"
	"reservation-service/internal/service"
)

// MockCache mocks the listing cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockCache) SetListing(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockCache) DeleteListing(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestReaderService_GetAvailability_CacheHit(t *testing.T) {
	// Arrange
	b := newFakeBackend()
	cache := new(MockCache)
	cached := &models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 7, MinimumQty: 1, Orderable: true}
	cache.On("GetListing", mock.Anything, "lst-1").Return(cached, nil)

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, cache)

	// Act
	resp, err := reader.GetAvailability(context.Background(), "lst-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, 7, resp.AvailableQty)
	cache.AssertExpectations(t)
}

func TestReaderService_GetAvailability_CacheMiss(t *testing.T) {
	// Arrange
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 12, MinimumQty: 2, Orderable: true})
	cache := new(MockCache)
	cache.On("GetListing", mock.Anything, "lst-1").Return(nil, nil)
	cache.On("SetListing", mock.Anything, mock.Anything).Return(nil).Maybe() // async repopulation

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, cache)

	// Act
	resp, err := reader.GetAvailability(context.Background(), "lst-1")

	// Assert
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 12, resp.AvailableQty)
	assert.Equal(t, 2, resp.MinimumQty)
	assert.True(t, resp.Orderable)
}

func TestReaderService_GetAvailability_CacheErrorFallsBackToDatabase(t *testing.T) {
	// Arrange
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 5, MinimumQty: 1, Orderable: true})
	cache := new(MockCache)
	cache.On("GetListing", mock.Anything, "lst-1").Return(nil, errors.New("connection refused"))
	cache.On("SetListing", mock.Anything, mock.Anything).Return(nil).Maybe()

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, cache)

	// Act
	resp, err := reader.GetAvailability(context.Background(), "lst-1")

	// Assert
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 5, resp.AvailableQty)
}

func TestReaderService_GetAvailability_NotFound(t *testing.T) {
	b := newFakeBackend()
	cache := new(MockCache)
	cache.On("GetListing", mock.Anything, "lst-missing").Return(nil, nil)

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, cache)

	_, err := reader.GetAvailability(context.Background(), "lst-missing")
	assert.ErrorIs(t, err, models.ErrListingNotFound)
}

func TestReaderService_GetAvailability_NoCacheConfigured(t *testing.T) {
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 3, MinimumQty: 1, Orderable: true})

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, nil)

	resp, err := reader.GetAvailability(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 3, resp.AvailableQty)
}

func TestReaderService_ListByBuyer(t *testing.T) {
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 10, MinimumQty: 1, Orderable: true})
	engine := newTestEngine(t, b, nil)

	_, err := engine.Create(context.Background(), "lst-1", createRequest("buyer-1", 2))
	require.NoError(t, err)
	_, err = engine.Create(context.Background(), "lst-1", createRequest("buyer-1", 3))
	require.NoError(t, err)
	_, err = engine.Create(context.Background(), "lst-1", createRequest("buyer-2", 1))
	require.NoError(t, err)

	reader := service.NewReaderService(&fakeListings{b: b}, &fakeStore{b: b}, nil)

	mine, err := reader.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestCacheInvalidator_DropsListingOnStockChanges(t *testing.T) {
	cache := new(MockCache)
	cache.On("DeleteListing", mock.Anything, "lst-1").Return(nil).Twice()

	handler := service.NewCacheInvalidator(cache)

	for _, eventType := range []string{models.EventTypeReservationConfirmed, models.EventTypeReservationCancelled} {
		err := handler.HandleEvent(context.Background(), &models.ReservationEvent{
			EventType: eventType,
			ListingID: "lst-1",
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	cache.AssertExpectations(t)
}

func TestCacheInvalidator_IgnoresNonStockEvents(t *testing.T) {
	cache := new(MockCache)

	handler := service.NewCacheInvalidator(cache)

	for _, eventType := range []string{models.EventTypeReservationCreated, models.EventTypeReservationExpired, models.EventTypeReservationExtended} {
		err := handler.HandleEvent(context.Background(), &models.ReservationEvent{
			EventType: eventType,
			ListingID: "lst-1",
		})
		require.NoError(t, err)
	}
	cache.AssertNotCalled(t, "DeleteListing")
}

func TestCacheInvalidator_PropagatesCacheErrors(t *testing.T) {
	cache := new(MockCache)
	cache.On("DeleteListing", mock.Anything, "lst-1").Return(errors.New("connection refused"))

	handler := service.NewCacheInvalidator(cache)

	err := handler.HandleEvent(context.Background(), &models.ReservationEvent{
		EventType: models.EventTypeReservationConfirmed,
		ListingID: "lst-1",
	})
	assert.Error(t, err, "consumer must see the failure so the event is redelivered")
}
