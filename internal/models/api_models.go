package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorCode represents standardized error codes surfaced to API callers
type ErrorCode string

const (
	ErrorCodeInvalidField         ErrorCode = "INVALID_FIELD"
	ErrorCodeInvalidQuantity      ErrorCode = "INVALID_QUANTITY"
	ErrorCodeInsufficientQuantity ErrorCode = "INSUFFICIENT_QUANTITY"
	ErrorCodeListingNotFound      ErrorCode = "LISTING_NOT_FOUND"
	ErrorCodeReservationNotFound  ErrorCode = "RESERVATION_NOT_FOUND"
	ErrorCodeNotPending           ErrorCode = "RESERVATION_NOT_PENDING"
	ErrorCodeReservationExpired   ErrorCode = "RESERVATION_EXPIRED"
	ErrorCodeInvalidExpiry        ErrorCode = "INVALID_EXPIRY"
	ErrorCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrorCodeTransientStorage     ErrorCode = "TRANSIENT_STORAGE_ERROR"
	ErrorCodeValidationError      ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInternalError        ErrorCode = "INTERNAL_ERROR"
)

const (
	ProblemTypeValidationError = "validation-error"
	ProblemTypeBusinessError   = "business-logic-error"
	ProblemTypeNotFound        = "not-found"
	ProblemTypeInternalError   = "internal-error"
)

// API Request Models

// CreateReservationRequest represents a buyer's request to hold quantity
type CreateReservationRequest struct {
	BuyerID      string `json:"buyer_id" binding:"required" validate:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1" validate:"required,min=1"`
	PricePerUnit int64  `json:"price_per_unit" binding:"required,min=0" validate:"required,min=0"`
	Currency     string `json:"currency" binding:"required,len=3" validate:"required,len=3"`
	Notes        string `json:"notes,omitempty"`
}

// BatchCreateItem is one line of a cart checkout
type BatchCreateItem struct {
	ListingID    string `json:"listing_id" binding:"required" validate:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1" validate:"required,min=1"`
	PricePerUnit int64  `json:"price_per_unit" binding:"required,min=0" validate:"required,min=0"`
	Currency     string `json:"currency" binding:"required,len=3" validate:"required,len=3"`
	Notes        string `json:"notes,omitempty"`
}

// BatchCreateRequest represents a cart checkout creating several holds
type BatchCreateRequest struct {
	BuyerID string            `json:"buyer_id" binding:"required" validate:"required"`
	Items   []BatchCreateItem `json:"items" binding:"required,min=1,dive" validate:"required,min=1,dive"`
}

// ConfirmRequest represents a seller confirming a hold
type ConfirmRequest struct {
	SellerID string `json:"seller_id" binding:"required" validate:"required"`
}

// CancelRequest represents a cancellation by buyer, seller or system
type CancelRequest struct {
	ActorID   string    `json:"actor_id" binding:"required" validate:"required"`
	ActorRole ActorRole `json:"actor_role" binding:"required,oneof=buyer seller system" validate:"required"`
}

// ExtendRequest represents a deadline extension on a pending hold
type ExtendRequest struct {
	ActorID   string    `json:"actor_id" binding:"required" validate:"required"`
	NewExpiry time.Time `json:"new_expiry" binding:"required" validate:"required"`
	Reason    string    `json:"reason,omitempty"`
}

// API Response Models

// ReservationResponse represents a reservation returned to callers
type ReservationResponse struct {
	ReservationID uuid.UUID         `json:"reservation_id"`
	ListingID     string            `json:"listing_id"`
	BuyerID       string            `json:"buyer_id"`
	Quantity      int               `json:"quantity"`
	PricePerUnit  int64             `json:"price_per_unit"`
	Currency      string            `json:"currency"`
	Status        ReservationStatus `json:"status"`
	ExpiresAt     time.Time         `json:"expires_at"`
	ExtendedUntil *time.Time        `json:"extended_until,omitempty"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewReservationResponse maps a domain reservation onto the API shape
func NewReservationResponse(r *Reservation) *ReservationResponse {
	return &ReservationResponse{
		ReservationID: r.ReservationID,
		ListingID:     r.ListingID,
		BuyerID:       r.BuyerID,
		Quantity:      r.Quantity,
		PricePerUnit:  r.PricePerUnit,
		Currency:      r.Currency,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		ExtendedUntil: r.ExtendedUntil,
		ConfirmedAt:   r.ConfirmedAt,
		CancelledAt:   r.CancelledAt,
		CreatedAt:     r.CreatedAt,
	}
}

// BatchCreateResponse returns the holds created by a cart checkout
type BatchCreateResponse struct {
	Reservations []*ReservationResponse `json:"reservations"`
}

// AvailabilityResponse represents the read-side availability of a listing
type AvailabilityResponse struct {
	ListingID    string    `json:"listing_id"`
	AvailableQty int       `json:"available_qty"`
	MinimumQty   int       `json:"minimum_qty"`
	Orderable    bool      `json:"orderable"`
	CacheHit     bool      `json:"cache_hit"`
	LastUpdated  time.Time `json:"last_updated"`
}

// ValidationError represents a single invalid request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ProblemDetails is the RFC 7807 style error body used by all handlers
type ProblemDetails struct {
	Type   string      `json:"type"`
	Title  string      `json:"title"`
	Status int         `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Field  string      `json:"field,omitempty"`
	Code   string      `json:"code,omitempty"`
	Errors interface{} `json:"errors,omitempty"`
}

func NewProblemDetails(status int, title, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemType(status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// NewValidationProblem creates a single-field validation error problem
func NewValidationProblem(field, message string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeValidationError,
		Title:  "Validation Failed",
		Status: 400,
		Detail: message,
		Field:  field,
		Code:   string(code),
	}
}

// NewMultiValidationProblem creates a multi-field validation error problem
func NewMultiValidationProblem(violations []ValidationError) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeValidationError,
		Title:  "Validation Failed",
		Status: 400,
		Detail: "Multiple validation errors occurred",
		Errors: violations,
	}
}

// NewBusinessLogicProblem creates a business logic error problem
func NewBusinessLogicProblem(status int, title, detail string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeBusinessError,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   string(code),
	}
}

// NewNotFoundProblem creates a not found error problem
func NewNotFoundProblem(resource string) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeNotFound,
		Title:  "Resource Not Found",
		Status: 404,
		Detail: resource + " not found",
	}
}

// NewInternalErrorProblem creates an internal server error problem
func NewInternalErrorProblem() *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeInternalError,
		Title:  "Internal Server Error",
		Status: 500,
		Detail: "An unexpected error occurred",
	}
}

func problemType(status int) string {
	switch status {
	case 400:
		return ProblemTypeValidationError
	case 404:
		return ProblemTypeNotFound
	case 409, 422:
		return ProblemTypeBusinessError
	default:
		return ProblemTypeInternalError
	}
}
