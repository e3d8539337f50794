package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/interfaces"
	"reservation-service/internal/models"
)

// ReaderService serves read-only queries: listing availability through the
// cache, and reservation lookups straight from the database.
type ReaderService struct {
	listings interfaces.ListingRepository
	store    interfaces.ReservationRepository
	cache    interfaces.CacheRepository
}

// NewReaderService creates a new reader service
func NewReaderService(
	listings interfaces.ListingRepository,
	store interfaces.ReservationRepository,
	cache interfaces.CacheRepository,
) *ReaderService {
	return &ReaderService{
		listings: listings,
		store:    store,
		cache:    cache,
	}
}

// GetAvailability returns listing availability, checking the cache first.
// Availability served from cache may lag a just-committed confirmation;
// writes always re-check against the database.
func (s *ReaderService) GetAvailability(ctx context.Context, listingID string) (*models.AvailabilityResponse, error) {
	if s.cache != nil {
		listing, err := s.cache.GetListing(ctx, listingID)
		if err != nil {
			log.Error().Err(err).Str("listing_id", listingID).Msg("Cache error, falling back to database")
		}
		if listing != nil {
			return availabilityResponse(listing, true), nil
		}
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing from database: %w", err)
	}
	if listing == nil {
		return nil, models.ErrListingNotFound
	}

	if s.cache != nil {
		go func(l models.Listing) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := s.cache.SetListing(ctx, &l); err != nil {
				log.Error().Err(err).Str("listing_id", l.ListingID).Msg("Failed to update listing cache")
			}
		}(*listing)
	}

	return availabilityResponse(listing, false), nil
}

// GetReservation returns a reservation by ID
func (s *ReaderService) GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, reservationID)
}

// ListByBuyer returns all reservations placed by a buyer
func (s *ReaderService) ListByBuyer(ctx context.Context, buyerID string) ([]models.Reservation, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

// ListBySeller returns all reservations against a seller's listings
func (s *ReaderService) ListBySeller(ctx context.Context, sellerID string) ([]models.Reservation, error) {
	return s.store.ListBySeller(ctx, sellerID)
}

// ListByListing returns all reservations against a listing
func (s *ReaderService) ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error) {
	return s.store.ListByListing(ctx, listingID)
}

func availabilityResponse(listing *models.Listing, cacheHit bool) *models.AvailabilityResponse {
	return &models.AvailabilityResponse{
		ListingID:    listing.ListingID,
		AvailableQty: listing.AvailableQty,
		MinimumQty:   listing.MinimumQty,
		Orderable:    listing.Orderable,
		CacheHit:     cacheHit,
		LastUpdated:  listing.UpdatedAt,
	}
}
