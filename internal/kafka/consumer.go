package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"reservation-service/internal/interfaces"
	"reservation-service/internal/models"
)

// Consumer reads reservation lifecycle events from Kafka
type Consumer struct {
	eventsReader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, consumerGroup, eventsTopic string) *Consumer {
	eventsReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   eventsTopic,
		GroupID: consumerGroup,

		// Consumer configuration for reliability
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB max message size
		CommitInterval: 5 * time.Second,
		StartOffset:    kafka.LastOffset,
		MaxWait:        1 * time.Second,

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("Kafka events reader error: "+msg, args...)
		}),
	})

	return &Consumer{
		eventsReader: eventsReader,
	}
}

// ConsumeEvents reads lifecycle events and dispatches them to the handler
// until the context is cancelled. Messages are committed only after the
// handler succeeds, so failed events are redelivered.
func (c *Consumer) ConsumeEvents(ctx context.Context, handler interfaces.EventHandler) error {
	log.Info().Msg("Starting to consume reservation events")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping event consumption")
			return ctx.Err()
		default:
			message, err := c.eventsReader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Error().Err(err).Msg("Failed to fetch event message")
				time.Sleep(time.Second) // Backoff on error
				continue
			}

			var event models.ReservationEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				log.Error().Err(err).
					Str("topic", message.Topic).
					Int("partition", message.Partition).
					Int64("offset", message.Offset).
					Msg("Failed to unmarshal event")

				// Malformed payloads can never succeed, commit to skip.
				if commitErr := c.eventsReader.CommitMessages(ctx, message); commitErr != nil {
					log.Error().Err(commitErr).Msg("Failed to commit invalid message")
				}
				continue
			}

			if err := c.processEventWithRetry(ctx, handler, &event, 3); err != nil {
				log.Error().Err(err).
					Str("event_type", event.EventType).
					Str("listing_id", event.ListingID).
					Str("event_id", event.EventID).
					Msg("Failed to handle event after retries")

				// Leave the message uncommitted so Kafka redelivers it.
				continue
			}

			if err := c.eventsReader.CommitMessages(ctx, message); err != nil {
				log.Error().Err(err).
					Str("event_id", event.EventID).
					Msg("Failed to commit event message")
			} else {
				log.Debug().
					Str("event_type", event.EventType).
					Str("listing_id", event.ListingID).
					Str("event_id", event.EventID).
					Msg("Successfully processed and committed event")
			}
		}
	}
}

// processEventWithRetry processes an event with exponential backoff
func (c *Consumer) processEventWithRetry(ctx context.Context, handler interfaces.EventHandler, event *models.ReservationEvent, maxRetries int) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := handler.HandleEvent(ctx, event)
		if err == nil {
			return nil
		}

		if isNonRetryableError(err) {
			// Retrying cannot help; report success so the message is
			// committed instead of redelivered forever.
			log.Warn().Err(err).
				Str("event_id", event.EventID).
				Msg("Non-retryable error, skipping event")
			return nil
		}

		if attempt < maxRetries {
			// Exponential backoff: 100ms, 200ms, 400ms
			backoff := time.Duration(100*(1<<attempt)) * time.Millisecond
			log.Warn().Err(err).
				Str("event_id", event.EventID).
				Int("attempt", attempt+1).
				Int("max_retries", maxRetries+1).
				Dur("backoff", backoff).
				Msg("Event processing failed, retrying after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("event processing failed after %d attempts", maxRetries+1)
}

// isNonRetryableError reports whether retrying the handler can ever help
func isNonRetryableError(err error) bool {
	switch {
	case errors.Is(err, models.ErrReservationNotFound),
		errors.Is(err, models.ErrListingNotFound),
		errors.Is(err, models.ErrReservationNotPending):
		return true
	default:
		return false
	}
}

// Close closes the Kafka reader
func (c *Consumer) Close() error {
	if err := c.eventsReader.Close(); err != nil {
		return fmt.Errorf("failed to close events reader: %w", err)
	}
	return nil
}
