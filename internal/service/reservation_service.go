package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/clock"
	"reservation-service/internal/interfaces"
	"reservation-service/internal/models"
)

// ReservationEngine owns the reservation lifecycle: soft holds on listing
// quantity, confirmation with the physical stock decrement, cancellation
// with restore, and deadline extensions. All state changes run inside a
// single transaction together with their outbox event.
type ReservationEngine struct {
	listings interfaces.ListingRepository
	store    interfaces.ReservationRepository
	cache    interfaces.CacheRepository
	clock    clock.Clock
	config   EngineConfig
}

// EngineConfig holds engine configuration
type EngineConfig struct {
	HoldDuration   time.Duration // Lifetime of a fresh hold
	SweepInterval  time.Duration // Pause between sweeper passes
	SweepBatch     int           // Max reservations expired per pass
	TxMaxRetries   int           // Retries after a transient storage error
	TxRetryBackoff time.Duration // Base backoff between retries
}

// Validate validates the engine configuration
func (c EngineConfig) Validate() error {
	if c.HoldDuration < time.Minute {
		return fmt.Errorf("hold duration must be at least 1 minute, got %v", c.HoldDuration)
	}
	if c.SweepInterval < time.Second {
		return fmt.Errorf("sweep interval must be at least 1 second, got %v", c.SweepInterval)
	}
	if c.SweepBatch < 1 {
		return fmt.Errorf("sweep batch must be positive, got %d", c.SweepBatch)
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("tx max retries must not be negative, got %d", c.TxMaxRetries)
	}
	if c.TxRetryBackoff < time.Millisecond {
		return fmt.Errorf("tx retry backoff must be at least 1ms, got %v", c.TxRetryBackoff)
	}
	return nil
}

// NewReservationEngine creates a new reservation engine with dependency
// injection and validation. The cache may be nil when the engine runs
// without a read-side cache (e.g. the sweeper binary).
func NewReservationEngine(
	listings interfaces.ListingRepository,
	store interfaces.ReservationRepository,
	cache interfaces.CacheRepository,
	clk clock.Clock,
	config EngineConfig,
) (*ReservationEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &ReservationEngine{
		listings: listings,
		store:    store,
		cache:    cache,
		clock:    clk,
		config:   config,
	}, nil
}

// Create places a soft hold for a buyer on a listing. The hold is checked
// against current availability but does not decrement it; only confirmation
// does. The hold expires after the configured duration unless extended.
func (s *ReservationEngine) Create(ctx context.Context, listingID string, req *models.CreateReservationRequest) (*models.Reservation, error) {
	if err := validateCreateRequest(listingID, req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var reservation *models.Reservation

	err := s.runTx(ctx, func(txCtx context.Context) error {
		listing, err := s.listings.GetListingForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if !listing.Orderable {
			return fmt.Errorf("%w: listing %s is not orderable", models.ErrListingNotFound, listingID)
		}
		if req.Quantity < listing.MinimumQty {
			return fmt.Errorf("%w: quantity %d below listing minimum %d", models.ErrInvalidQuantity, req.Quantity, listing.MinimumQty)
		}
		if req.Quantity > listing.AvailableQty {
			return fmt.Errorf("%w: requested %d, available %d", models.ErrInsufficientQuantity, req.Quantity, listing.AvailableQty)
		}

		reservation = &models.Reservation{
			ReservationID: uuid.New(),
			ListingID:     listingID,
			BuyerID:       req.BuyerID,
			Quantity:      req.Quantity,
			PricePerUnit:  req.PricePerUnit,
			Currency:      req.Currency,
			Status:        models.ReservationStatusPending,
			Notes:         req.Notes,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.config.HoldDuration),
			UpdatedAt:     now,
		}

		if err := s.store.CreateReservation(txCtx, reservation); err != nil {
			return err
		}
		return s.stageEvent(txCtx, models.EventTypeReservationCreated, reservation, req.BuyerID, models.ActorRoleBuyer, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("reservation_id", reservation.ReservationID.String()).
		Str("listing_id", listingID).
		Str("buyer_id", req.BuyerID).
		Int("quantity", req.Quantity).
		Time("expires_at", reservation.ExpiresAt).
		Msg("Reservation created")

	return reservation, nil
}

// BatchCreate places one hold per cart line. Each hold commits in its own
// transaction; on the first failure the already-created holds are left in
// place, where they expire naturally if the buyer abandons the cart.
func (s *ReservationEngine) BatchCreate(ctx context.Context, req *models.BatchCreateRequest) ([]*models.Reservation, error) {
	if req == nil || req.BuyerID == "" {
		return nil, fmt.Errorf("%w: buyer ID is required", models.ErrInvalidQuantity)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", models.ErrInvalidQuantity)
	}

	reservations := make([]*models.Reservation, 0, len(req.Items))
	for i, item := range req.Items {
		reservation, err := s.Create(ctx, item.ListingID, &models.CreateReservationRequest{
			BuyerID:      req.BuyerID,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
			Currency:     item.Currency,
			Notes:        item.Notes,
		})
		if err != nil {
			return reservations, fmt.Errorf("item %d (listing %s): %w", i, item.ListingID, err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// Confirm turns a pending hold into a confirmed sale. This is the single
// point where stock is physically decremented; the guarded decrement and
// the compare-and-set status transition together make confirmation
// exactly-once and oversell impossible.
func (s *ReservationEngine) Confirm(ctx context.Context, reservationID uuid.UUID, sellerID string) error {
	if sellerID == "" {
		return fmt.Errorf("%w: seller ID is required", models.ErrUnauthorized)
	}

	now := s.clock.Now()
	var listingID string

	err := s.runTx(ctx, func(txCtx context.Context) error {
		// Lock order is reservation then listing; Cancel does the same.
		reservation, err := s.store.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		listing, err := s.listings.GetListingForUpdate(txCtx, reservation.ListingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return fmt.Errorf("%w: seller %s does not own listing %s", models.ErrUnauthorized, sellerID, listing.ListingID)
		}
		if reservation.Status != models.ReservationStatusPending {
			return fmt.Errorf("%w: status is %s", models.ErrReservationNotPending, reservation.Status)
		}
		if reservation.ExpiredAt(now) {
			return fmt.Errorf("%w: deadline %s has passed", models.ErrReservationExpired, reservation.EffectiveDeadline().Format(time.RFC3339))
		}

		if err := s.listings.DecrementAvailable(txCtx, reservation.ListingID, reservation.Quantity); err != nil {
			return err
		}
		if err := s.store.TransitionStatus(txCtx, reservationID, models.ReservationStatusPending, models.ReservationStatusConfirmed, now); err != nil {
			return err
		}

		listingID = reservation.ListingID
		reservation.Status = models.ReservationStatusConfirmed
		return s.stageEvent(txCtx, models.EventTypeReservationConfirmed, reservation, sellerID, models.ActorRoleSeller, now)
	})
	if err != nil {
		return err
	}

	s.invalidateListingCache(listingID)

	log.Info().
		Str("reservation_id", reservationID.String()).
		Str("listing_id", listingID).
		Str("seller_id", sellerID).
		Msg("Reservation confirmed")

	return nil
}

// Cancel terminates a reservation. Buyers may cancel their own pending
// holds, sellers any pending or confirmed reservation on their listings,
// and the system only pending holds whose deadline has passed. Cancelling
// a confirmed reservation restores the decremented stock; cancelling a
// pending one touches no stock because none was taken.
func (s *ReservationEngine) Cancel(ctx context.Context, reservationID uuid.UUID, actorID string, role models.ActorRole) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor ID is required", models.ErrUnauthorized)
	}

	now := s.clock.Now()
	var (
		listingID     string
		stockRestored bool
	)

	err := s.runTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.store.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status.Terminal() {
			return fmt.Errorf("%w: status is %s", models.ErrReservationNotPending, reservation.Status)
		}

		target := models.ReservationStatusCancelled
		eventType := models.EventTypeReservationCancelled

		switch role {
		case models.ActorRoleBuyer:
			if reservation.BuyerID != actorID {
				return fmt.Errorf("%w: reservation belongs to another buyer", models.ErrUnauthorized)
			}
			if reservation.Status != models.ReservationStatusPending {
				return fmt.Errorf("%w: buyers may only cancel pending reservations", models.ErrUnauthorized)
			}
		case models.ActorRoleSeller:
			listing, err := s.listings.GetListingForUpdate(txCtx, reservation.ListingID)
			if err != nil {
				return err
			}
			if listing.SellerID != actorID {
				return fmt.Errorf("%w: seller %s does not own listing %s", models.ErrUnauthorized, actorID, listing.ListingID)
			}
		case models.ActorRoleSystem:
			if reservation.Status != models.ReservationStatusPending || !reservation.ExpiredAt(now) {
				return fmt.Errorf("%w: system may only expire overdue pending reservations", models.ErrUnauthorized)
			}
			target = models.ReservationStatusExpired
			eventType = models.EventTypeReservationExpired
		default:
			return fmt.Errorf("%w: unknown actor role %q", models.ErrUnauthorized, role)
		}

		if err := s.store.TransitionStatus(txCtx, reservationID, reservation.Status, target, now); err != nil {
			return err
		}
		if reservation.Status == models.ReservationStatusConfirmed {
			if err := s.listings.IncrementAvailable(txCtx, reservation.ListingID, reservation.Quantity); err != nil {
				return err
			}
			stockRestored = true
		}

		listingID = reservation.ListingID
		reservation.Status = target
		return s.stageEvent(txCtx, eventType, reservation, actorID, role, now)
	})
	if err != nil {
		return err
	}

	if stockRestored {
		s.invalidateListingCache(listingID)
	}

	log.Info().
		Str("reservation_id", reservationID.String()).
		Str("listing_id", listingID).
		Str("actor_id", actorID).
		Str("actor_role", string(role)).
		Bool("stock_restored", stockRestored).
		Msg("Reservation cancelled")

	return nil
}

// Extend pushes out the deadline of a pending hold. The new deadline must
// lie in the future and strictly after the current effective deadline, so
// extensions only ever lengthen a hold.
func (s *ReservationEngine) Extend(ctx context.Context, reservationID uuid.UUID, req *models.ExtendRequest) error {
	if req == nil || req.ActorID == "" {
		return fmt.Errorf("%w: actor ID is required", models.ErrUnauthorized)
	}

	now := s.clock.Now()

	err := s.runTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.store.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != models.ReservationStatusPending {
			return fmt.Errorf("%w: status is %s", models.ErrReservationNotPending, reservation.Status)
		}
		if !req.NewExpiry.After(now) {
			return fmt.Errorf("%w: new expiry %s is not in the future", models.ErrInvalidExpiry, req.NewExpiry.Format(time.RFC3339))
		}
		if !req.NewExpiry.After(reservation.EffectiveDeadline()) {
			return fmt.Errorf("%w: new expiry %s does not extend current deadline %s",
				models.ErrInvalidExpiry, req.NewExpiry.Format(time.RFC3339), reservation.EffectiveDeadline().Format(time.RFC3339))
		}

		if err := s.store.SetExtension(txCtx, reservationID, req.NewExpiry, req.Reason, req.ActorID); err != nil {
			return err
		}

		until := req.NewExpiry
		reservation.ExtendedUntil = &until
		return s.stageEvent(txCtx, models.EventTypeReservationExtended, reservation, req.ActorID, models.ActorRoleSeller, now)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("reservation_id", reservationID.String()).
		Str("actor_id", req.ActorID).
		Time("new_expiry", req.NewExpiry).
		Msg("Reservation extended")

	return nil
}

// runTx executes fn in a transaction and retries on transient storage
// errors (serialization failures, deadlocks, lock timeouts) with linear
// backoff.
func (s *ReservationEngine) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.config.TxMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.TxRetryBackoff * time.Duration(attempt)):
			}
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Retrying transaction after transient storage error")
		}

		err = s.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, models.ErrTransientStorage) {
			return err
		}
	}
	return err
}

// stageEvent writes a lifecycle event into the outbox within the current
// transaction, keyed by listing so consumers see per-listing ordering.
func (s *ReservationEngine) stageEvent(ctx context.Context, eventType string, r *models.Reservation, actorID string, role models.ActorRole, at time.Time) error {
	event := &models.ReservationEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		ReservationID: r.ReservationID,
		ListingID:     r.ListingID,
		BuyerID:       r.BuyerID,
		ActorID:       actorID,
		ActorRole:     role,
		Quantity:      r.Quantity,
		PricePerUnit:  r.PricePerUnit,
		Currency:      r.Currency,
		Status:        r.Status,
		Timestamp:     at,
	}
	return s.store.CreateOutboxEvent(ctx, eventType, r.ListingID, event)
}

// invalidateListingCache drops the cached availability for a listing after
// a committed stock change.
func (s *ReservationEngine) invalidateListingCache(listingID string) {
	if s.cache == nil || listingID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.cache.DeleteListing(ctx, listingID); err != nil {
			log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to invalidate listing cache")
		} else {
			log.Debug().Str("listing_id", listingID).Msg("Listing cache invalidated")
		}
	}()
}

func validateCreateRequest(listingID string, req *models.CreateReservationRequest) error {
	if listingID == "" {
		return fmt.Errorf("%w: listing ID is required", models.ErrListingNotFound)
	}
	if req == nil || req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidQuantity)
	}
	if req.BuyerID == "" {
		return fmt.Errorf("%w: buyer ID is required", models.ErrInvalidQuantity)
	}
	if req.PricePerUnit < 0 {
		return fmt.Errorf("%w: price per unit must not be negative", models.ErrInvalidQuantity)
	}
	if len(req.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", models.ErrInvalidQuantity)
	}
	return nil
}
