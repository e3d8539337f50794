package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"reservation-service/internal/metrics"
	"reservation-service/internal/models"
)

// SweeperActorID is recorded as the actor on reservations expired by the
// background sweeper.
const SweeperActorID = "sweeper"

// SweepExpired expires one batch of overdue pending reservations. Each
// reservation is expired in its own transaction so a failure on one row
// does not roll back the rest of the batch. Returns the number of
// reservations moved to expired.
func (s *ReservationEngine) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	overdue, err := s.store.ListExpired(ctx, now, s.config.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	swept := 0
	for i := range overdue {
		reservationID := overdue[i].ReservationID
		err := s.Cancel(ctx, reservationID, SweeperActorID, models.ActorRoleSystem)
		switch {
		case err == nil:
			swept++
		case errors.Is(err, models.ErrReservationNotPending), errors.Is(err, models.ErrReservationNotFound):
			// Lost the race to a confirm, a cancel or another sweeper
			// instance. Nothing to do.
			log.Debug().
				Str("reservation_id", reservationID.String()).
				Msg("Reservation no longer pending, skipping")
		default:
			log.Error().Err(err).
				Str("reservation_id", reservationID.String()).
				Msg("Failed to expire reservation")
		}
	}

	metrics.SweepPasses.Inc()
	metrics.ReservationsSwept.Add(float64(swept))

	if swept > 0 {
		log.Info().
			Int("swept", swept).
			Int("candidates", len(overdue)).
			Msg("Expired overdue reservations")
	}
	return swept, nil
}

// RunSweeper runs the expiry sweeper until the context is cancelled.
func (s *ReservationEngine) RunSweeper(ctx context.Context) {
	log.Info().
		Dur("interval", s.config.SweepInterval).
		Int("batch", s.config.SweepBatch).
		Msg("Starting expiry sweeper")

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				log.Error().Err(err).Msg("Sweep pass failed")
			}
		}
	}
}
