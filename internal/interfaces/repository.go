package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reservation-service/internal/models"
)

// ListingRepository is the inventory ledger: the only code allowed to
// mutate a listing's available quantity. Mutating methods must be called
// inside a transaction opened by ReservationRepository.WithTx; they carry
// no transaction boundary of their own.
type ListingRepository interface {
	GetListing(ctx context.Context, listingID string) (*models.Listing, error)
	GetListingForUpdate(ctx context.Context, listingID string) (*models.Listing, error)

	// DecrementAvailable subtracts qty only when enough stock remains.
	// Returns models.ErrInsufficientQuantity when the guard fails.
	DecrementAvailable(ctx context.Context, listingID string, qty int) error
	IncrementAvailable(ctx context.Context, listingID string, qty int) error
}

// ReservationRepository is the reservation store: the only writer of
// reservation status. Status transitions are compare-and-set on the
// expected current status.
type ReservationRepository interface {
	// WithTx runs fn inside a single database transaction. Nested calls
	// join the surrounding transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)

	// TransitionStatus moves a reservation from the expected status to the
	// next one, stamping at. Returns models.ErrReservationNotPending when
	// the reservation is no longer in the expected status.
	TransitionStatus(ctx context.Context, reservationID uuid.UUID, from, to models.ReservationStatus, at time.Time) error

	SetExtension(ctx context.Context, reservationID uuid.UUID, until time.Time, reason, actorID string) error

	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Reservation, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Reservation, error)
	ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error)

	// CreateOutboxEvent stages a lifecycle event in the same transaction
	// as the state change it describes.
	CreateOutboxEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

// CacheRepository is the read-side listing availability cache
type CacheRepository interface {
	GetListing(ctx context.Context, listingID string) (*models.Listing, error)
	SetListing(ctx context.Context, listing *models.Listing) error
	DeleteListing(ctx context.Context, listingID string) error
	Close() error
}
