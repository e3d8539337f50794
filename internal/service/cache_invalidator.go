package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"reservation-service/internal/interfaces"
	"reservation-service/internal/models"
)

// CacheInvalidator drops cached listing availability when a consumed
// lifecycle event signals a stock change. Confirmations decrement stock
// and cancellations of confirmed reservations restore it; created,
// expired and extended events leave stock untouched.
type CacheInvalidator struct {
	cache interfaces.CacheRepository
}

// NewCacheInvalidator creates a new cache invalidating event handler
func NewCacheInvalidator(cache interfaces.CacheRepository) *CacheInvalidator {
	return &CacheInvalidator{cache: cache}
}

// HandleEvent implements the event handler contract
func (h *CacheInvalidator) HandleEvent(ctx context.Context, event *models.ReservationEvent) error {
	switch event.EventType {
	case models.EventTypeReservationConfirmed, models.EventTypeReservationCancelled:
	default:
		return nil
	}

	if err := h.cache.DeleteListing(ctx, event.ListingID); err != nil {
		log.Error().Err(err).
			Str("listing_id", event.ListingID).
			Str("event_type", event.EventType).
			Msg("Failed to invalidate listing cache from event")
		return err
	}

	log.Debug().
		Str("listing_id", event.ListingID).
		Str("event_type", event.EventType).
		Msg("Listing cache invalidated from event")
	return nil
}
