package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
)

func TestSweepExpired_ExpiresOverdueHolds(t *testing.T) {
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 10, MinimumQty: 1, Orderable: true})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, b, clock.NewFixed(start))

	overdue, err := engine.Create(context.Background(), "lst-1", createRequest("buyer-1", 2))
	require.NoError(t, err)
	fresh, err := engine.Create(context.Background(), "lst-1", createRequest("buyer-2", 3))
	require.NoError(t, err)
	confirmed, err := engine.Create(context.Background(), "lst-1", createRequest("buyer-3", 1))
	require.NoError(t, err)
	require.NoError(t, engine.Confirm(context.Background(), confirmed.ReservationID, "seller-1"))

	// Push only the first hold past its deadline.
	require.NoError(t, engine.Extend(context.Background(), fresh.ReservationID, &models.ExtendRequest{
		ActorID:   "seller-1",
		NewExpiry: start.Add(200 * time.Hour),
	}))

	late := newTestEngine(t, b, clock.NewFixed(start.Add(100*time.Hour)))
	swept, err := late.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	assert.Equal(t, models.ReservationStatusExpired, b.reservation(overdue.ReservationID).Status)
	assert.Equal(t, models.ReservationStatusPending, b.reservation(fresh.ReservationID).Status, "extended holds stay pending")
	assert.Equal(t, models.ReservationStatusConfirmed, b.reservation(confirmed.ReservationID).Status, "confirmed reservations are never swept")
	assert.Equal(t, 9, b.availableQty("lst-1"), "sweeping pending holds must not touch stock")
}

func TestSweepExpired_Idempotent(t *testing.T) {
	b := newFakeBackend()
	b.addListing(models.Listing{ListingID: "lst-1", SellerID: "seller-1", AvailableQty: 10, MinimumQty: 1, Orderable: true})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, b, clock.NewFixed(start))

	_, err := engine.Create(context.Background(), "lst-1", createRequest("buyer-1", 2))
	require.NoError(t, err)

	late := newTestEngine(t, b, clock.NewFixed(start.Add(100*time.Hour)))

	swept, err := late.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	swept, err = late.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept, "a second pass over the same rows must be a no-op")
}

func TestSweepExpired_EmptyBacklog(t *testing.T) {
	b := newFakeBackend()
	engine := newTestEngine(t, b, nil)

	swept, err := engine.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}
