package interfaces

import (
	"context"

	"reservation-service/internal/models"
)

// MessagePublisher defines the contract for publishing lifecycle events
type MessagePublisher interface {
	PublishEvent(ctx context.Context, event *models.ReservationEvent) error
	Close() error
}

// MessageConsumer defines the contract for consuming lifecycle events
type MessageConsumer interface {
	ConsumeEvents(ctx context.Context, handler EventHandler) error
	Close() error
}

// EventHandler processes a single lifecycle event
type EventHandler interface {
	HandleEvent(ctx context.Context, event *models.ReservationEvent) error
}
