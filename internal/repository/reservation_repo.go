package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/models"
)

// ReservationRepository is the reservation store: the only writer of
// reservation status. Every transition is a compare-and-set on the
// expected current status so concurrent callers racing on the same
// reservation linearize cleanly.
type ReservationRepository struct {
	db         *sqlx.DB
	outboxRepo *OutboxRepository
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{
		db:         db,
		outboxRepo: NewOutboxRepository(db),
	}
}

// WithTx runs fn inside a single database transaction
func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

const reservationColumns = `reservation_id, listing_id, buyer_id, quantity, price_per_unit, currency,
			  status, notes, created_at, confirmed_at, cancelled_at, expires_at,
			  extended_until, extension_reason, extended_by, updated_at`

// CreateReservation inserts a new pending reservation
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	query := `INSERT INTO reservations
			  (reservation_id, listing_id, buyer_id, quantity, price_per_unit, currency,
			   status, notes, created_at, expires_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9)`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		reservation.ReservationID,
		reservation.ListingID,
		reservation.BuyerID,
		reservation.Quantity,
		reservation.PricePerUnit,
		reservation.Currency,
		reservation.Status,
		reservation.Notes,
		reservation.CreatedAt,
		reservation.ExpiresAt,
	)
	if err != nil {
		log.Error().Err(err).Str("reservation_id", reservation.ReservationID.String()).Msg("Failed to create reservation")
		return wrapTransient(fmt.Errorf("create reservation: %w", err))
	}

	reservation.UpdatedAt = reservation.CreatedAt
	return nil
}

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_id = $1`

	err := sqlx.GetContext(ctx, ext(ctx, r.db), &reservation, query, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrReservationNotFound
		}
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to get reservation")
		return nil, wrapTransient(fmt.Errorf("get reservation: %w", err))
	}

	return &reservation, nil
}

// GetReservationForUpdate retrieves a reservation with a row lock so
// concurrent Confirm/Cancel/Extend calls on the same reservation serialize
func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_id = $1 FOR UPDATE`

	err := sqlx.GetContext(ctx, ext(ctx, r.db), &reservation, query, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrReservationNotFound
		}
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to get reservation for update")
		return nil, wrapTransient(fmt.Errorf("get reservation for update: %w", err))
	}

	return &reservation, nil
}

// TransitionStatus moves a reservation from the expected status to the
// next one and stamps the matching timestamp exactly once. A zero-row
// update means another caller won the race.
func (r *ReservationRepository) TransitionStatus(ctx context.Context, reservationID uuid.UUID, from, to models.ReservationStatus, at time.Time) error {
	query := `UPDATE reservations
			  SET status = $3,
			      confirmed_at = CASE WHEN $3 = 'confirmed' THEN $4 ELSE confirmed_at END,
			      cancelled_at = CASE WHEN $3 IN ('cancelled', 'expired') THEN $4 ELSE cancelled_at END,
			      updated_at = $4
			  WHERE reservation_id = $1 AND status = $2`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, reservationID, from, to, at)
	if err != nil {
		log.Error().Err(err).
			Str("reservation_id", reservationID.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Failed to transition reservation status")
		return wrapTransient(fmt.Errorf("transition status: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition status rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		return models.ErrReservationNotPending
	}

	return nil
}

// SetExtension records a deadline extension on a still-pending reservation
func (r *ReservationRepository) SetExtension(ctx context.Context, reservationID uuid.UUID, until time.Time, reason, actorID string) error {
	query := `UPDATE reservations
			  SET extended_until = $2, extension_reason = $3, extended_by = $4, updated_at = NOW()
			  WHERE reservation_id = $1 AND status = 'pending'`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, reservationID, until, reason, actorID)
	if err != nil {
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to set extension")
		return wrapTransient(fmt.Errorf("set extension: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set extension rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		return models.ErrReservationNotPending
	}

	return nil
}

// ListExpired retrieves pending reservations past their effective deadline
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := `SELECT ` + reservationColumns + `
			  FROM reservations
			  WHERE status = 'pending' AND COALESCE(extended_until, expires_at) < $1
			  ORDER BY expires_at ASC
			  LIMIT $2`

	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &reservations, query, now, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired reservations")
		return nil, wrapTransient(fmt.Errorf("list expired: %w", err))
	}

	return reservations, nil
}

// ListByBuyer retrieves all reservations placed by a buyer
func (r *ReservationRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := `SELECT ` + reservationColumns + `
			  FROM reservations
			  WHERE buyer_id = $1
			  ORDER BY created_at DESC`

	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &reservations, query, buyerID)
	if err != nil {
		log.Error().Err(err).Str("buyer_id", buyerID).Msg("Failed to list reservations by buyer")
		return nil, wrapTransient(fmt.Errorf("list by buyer: %w", err))
	}

	return reservations, nil
}

// ListBySeller retrieves all reservations against a seller's listings
func (r *ReservationRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := `SELECT r.reservation_id, r.listing_id, r.buyer_id, r.quantity, r.price_per_unit, r.currency,
			         r.status, r.notes, r.created_at, r.confirmed_at, r.cancelled_at, r.expires_at,
			         r.extended_until, r.extension_reason, r.extended_by, r.updated_at
			  FROM reservations r
			  JOIN listings l ON l.listing_id = r.listing_id
			  WHERE l.seller_id = $1
			  ORDER BY r.created_at DESC`

	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &reservations, query, sellerID)
	if err != nil {
		log.Error().Err(err).Str("seller_id", sellerID).Msg("Failed to list reservations by seller")
		return nil, wrapTransient(fmt.Errorf("list by seller: %w", err))
	}

	return reservations, nil
}

// ListByListing retrieves all reservations against a listing
func (r *ReservationRepository) ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := `SELECT ` + reservationColumns + `
			  FROM reservations
			  WHERE listing_id = $1
			  ORDER BY created_at DESC`

	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &reservations, query, listingID)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to list reservations by listing")
		return nil, wrapTransient(fmt.Errorf("list by listing: %w", err))
	}

	return reservations, nil
}

// CreateOutboxEvent stages a lifecycle event in the current transaction
func (r *ReservationRepository) CreateOutboxEvent(ctx context.Context, eventType, key string, payload interface{}) error {
	return r.outboxRepo.InsertOutboxEvent(ctx, eventType, key, payload)
}
