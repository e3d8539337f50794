package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s != ReservationStatusPending
}

// ActorRole identifies who is acting on a reservation
type ActorRole string

const (
	ActorRoleBuyer  ActorRole = "buyer"
	ActorRoleSeller ActorRole = "seller"
	ActorRoleSystem ActorRole = "system"
)

// Event types for published lifecycle events
const (
	EventTypeReservationCreated   = "reservation.created"
	EventTypeReservationConfirmed = "reservation.confirmed"
	EventTypeReservationCancelled = "reservation.cancelled"
	EventTypeReservationExpired   = "reservation.expired"
	EventTypeReservationExtended  = "reservation.extended"
)

// Domain Models

// Listing is the slice of the listing the engine is allowed to touch:
// the availability counter and the ordering constraints. Listings are
// created and deleted elsewhere; the engine only reads and adjusts
// available_quantity.
type Listing struct {
	ListingID    string    `db:"listing_id" json:"listing_id"`
	SellerID     string    `db:"seller_id" json:"seller_id"`
	AvailableQty int       `db:"available_qty" json:"available_qty"`
	MinimumQty   int       `db:"minimum_qty" json:"minimum_qty"`
	Orderable    bool      `db:"orderable" json:"orderable"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Reservation represents a buyer's hold on listing quantity. A pending
// reservation is a soft hold: stock is only decremented at confirmation.
type Reservation struct {
	ReservationID   uuid.UUID         `db:"reservation_id" json:"reservation_id"`
	ListingID       string            `db:"listing_id" json:"listing_id"`
	BuyerID         string            `db:"buyer_id" json:"buyer_id"`
	Quantity        int               `db:"quantity" json:"quantity"`
	PricePerUnit    int64             `db:"price_per_unit" json:"price_per_unit"`
	Currency        string            `db:"currency" json:"currency"`
	Status          ReservationStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	ConfirmedAt     *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ExpiresAt       time.Time         `db:"expires_at" json:"expires_at"`
	ExtendedUntil   *time.Time        `db:"extended_until" json:"extended_until,omitempty"`
	ExtensionReason *string           `db:"extension_reason" json:"extension_reason,omitempty"`
	ExtendedBy      *string           `db:"extended_by" json:"extended_by,omitempty"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// EffectiveDeadline returns the instant after which a pending reservation
// may be swept. An extension supersedes the original expiry.
func (r *Reservation) EffectiveDeadline() time.Time {
	if r.ExtendedUntil != nil {
		return *r.ExtendedUntil
	}
	return r.ExpiresAt
}

// ExpiredAt reports whether the reservation's deadline has passed at now.
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return now.After(r.EffectiveDeadline())
}

// ReservationEvent represents lifecycle events published to Kafka
type ReservationEvent struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	ReservationID uuid.UUID         `json:"reservation_id"`
	ListingID     string            `json:"listing_id"`
	BuyerID       string            `json:"buyer_id"`
	ActorID       string            `json:"actor_id,omitempty"`
	ActorRole     ActorRole         `json:"actor_role,omitempty"`
	Quantity      int               `json:"quantity"`
	PricePerUnit  int64             `json:"price_per_unit"`
	Currency      string            `json:"currency"`
	Status        ReservationStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
}

// OutboxEvent represents the outbox pattern table for reliable event publishing
type OutboxEvent struct {
	ID              int64     `db:"id" json:"id"`
	EventType       string    `db:"event_type" json:"event_type"`
	Key             string    `db:"key" json:"key"`
	Payload         string    `db:"payload" json:"payload"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	Published       bool      `db:"published" json:"published"`
	PublishAttempts int       `db:"publish_attempts" json:"publish_attempts"`
	LastError       *string   `db:"last_error" json:"last_error,omitempty"`
}
