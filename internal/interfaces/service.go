package interfaces

import (
	"context"

	"github.com/google/uuid"

	"reservation-service/internal/models"
)

// ReservationEngine defines the contract for the reservation lifecycle
type ReservationEngine interface {
	Create(ctx context.Context, listingID string, req *models.CreateReservationRequest) (*models.Reservation, error)
	BatchCreate(ctx context.Context, req *models.BatchCreateRequest) ([]*models.Reservation, error)
	Confirm(ctx context.Context, reservationID uuid.UUID, sellerID string) error
	Cancel(ctx context.Context, reservationID uuid.UUID, actorID string, role models.ActorRole) error
	Extend(ctx context.Context, reservationID uuid.UUID, req *models.ExtendRequest) error
}

// ReaderService defines the contract for read operations
type ReaderService interface {
	GetAvailability(ctx context.Context, listingID string) (*models.AvailabilityResponse, error)
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Reservation, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Reservation, error)
	ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error)
}

// SweeperService defines the contract for the expiry sweeper
type SweeperService interface {
	SweepExpired(ctx context.Context) (int, error)
	RunSweeper(ctx context.Context)
}
