package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/models"
)

// ListingRepository is the inventory ledger. It owns every mutation of a
// listing's available_qty; all mutations run on the caller's transaction.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

const listingColumns = `listing_id, seller_id, available_qty, minimum_qty, orderable, updated_at`

// GetListing retrieves a listing without locking; returns nil when absent.
// Read-side only.
func (r *ListingRepository) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE listing_id = $1`

	err := sqlx.GetContext(ctx, ext(ctx, r.db), &listing, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to get listing")
		return nil, wrapTransient(fmt.Errorf("get listing: %w", err))
	}

	return &listing, nil
}

// GetListingForUpdate retrieves a listing with a row lock so concurrent
// holds and confirmations against the same listing serialize.
func (r *ListingRepository) GetListingForUpdate(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE listing_id = $1 FOR UPDATE`

	err := sqlx.GetContext(ctx, ext(ctx, r.db), &listing, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrListingNotFound
		}
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to get listing for update")
		return nil, wrapTransient(fmt.Errorf("get listing for update: %w", err))
	}

	return &listing, nil
}

// DecrementAvailable subtracts qty from available_qty, guarded so the
// counter can never go negative. Two racing confirms serialize on the row;
// the loser sees the guard fail and gets ErrInsufficientQuantity.
func (r *ListingRepository) DecrementAvailable(ctx context.Context, listingID string, qty int) error {
	query := `UPDATE listings
			  SET available_qty = available_qty - $2, updated_at = NOW()
			  WHERE listing_id = $1 AND available_qty >= $2`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, listingID, qty)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Int("qty", qty).Msg("Failed to decrement available quantity")
		return wrapTransient(fmt.Errorf("decrement available: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement available rows: %w", err)
	}
	if rowsAffected == 0 {
		exists, err := r.listingExists(ctx, listingID)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrListingNotFound
		}
		return models.ErrInsufficientQuantity
	}

	return nil
}

// IncrementAvailable restores qty to available_qty, used when a confirmed
// reservation is cancelled.
func (r *ListingRepository) IncrementAvailable(ctx context.Context, listingID string, qty int) error {
	query := `UPDATE listings
			  SET available_qty = available_qty + $2, updated_at = NOW()
			  WHERE listing_id = $1`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, listingID, qty)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Int("qty", qty).Msg("Failed to increment available quantity")
		return wrapTransient(fmt.Errorf("increment available: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment available rows: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrListingNotFound
	}

	return nil
}

func (r *ListingRepository) listingExists(ctx context.Context, listingID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM listings WHERE listing_id = $1)`

	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists, query, listingID); err != nil {
		return false, wrapTransient(fmt.Errorf("listing exists: %w", err))
	}
	return exists, nil
}
