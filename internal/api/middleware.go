package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/models"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func ErrorHandlerMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			if requestID := getRequestID(c); requestID != "" {
				c.Header("X-Request-ID", requestID)
			}

			switch err.Type {
			case gin.ErrorTypeBind:
				handleValidationError(c, err.Err)
			case gin.ErrorTypePublic:
				handleDomainError(c, err.Err)
			default:
				handleInternalError(c, err.Err)
			}
		}
	})
}

// ResponseHelpers provides methods for REST-native responses
type ResponseHelpers struct{}

// Success sends the resource directly (no wrapper)
func (h *ResponseHelpers) Success(c *gin.Context, resource interface{}) {
	c.JSON(200, resource)
}

// Created sends a 201 created response with the created resource
func (h *ResponseHelpers) Created(c *gin.Context, resource interface{}) {
	c.JSON(201, resource)
}

// NoContent sends a 204 no content response
func (h *ResponseHelpers) NoContent(c *gin.Context) {
	c.Status(204)
}

func (h *ResponseHelpers) ValidationError(c *gin.Context, field, message string) {
	problem := models.NewValidationProblem(field, message, models.ErrorCodeInvalidField)
	h.setRequestIDHeader(c)
	c.JSON(400, problem)
}

func (h *ResponseHelpers) MultiValidationError(c *gin.Context, violations []models.ValidationError) {
	problem := models.NewMultiValidationProblem(violations)
	h.setRequestIDHeader(c)
	c.JSON(400, problem)
}

// BusinessError sends a business logic error (403, 409 or 422)
func (h *ResponseHelpers) BusinessError(c *gin.Context, status int, title, detail string, code models.ErrorCode) {
	problem := models.NewBusinessLogicProblem(status, title, detail, code)
	h.setRequestIDHeader(c)
	c.JSON(status, problem)
}

// NotFound sends a 404 not found response
func (h *ResponseHelpers) NotFound(c *gin.Context, resource string) {
	problem := models.NewNotFoundProblem(resource)
	h.setRequestIDHeader(c)
	c.JSON(404, problem)
}

// InternalError sends a 500 internal server error response
func (h *ResponseHelpers) InternalError(c *gin.Context, detail string) {
	problem := models.NewProblemDetails(500, "Internal Server Error", "An unexpected error occurred")
	h.setRequestIDHeader(c)

	// Log the error for debugging but don't expose internals
	log.Error().
		Str("request_id", getRequestID(c)).
		Str("detail", detail).
		Msg("Internal server error")

	c.JSON(500, problem)
}

// DomainError maps an engine error onto the matching problem response
func (h *ResponseHelpers) DomainError(c *gin.Context, err error) {
	h.setRequestIDHeader(c)
	handleDomainError(c, err)
}

// Helper functions

func (h *ResponseHelpers) setRequestIDHeader(c *gin.Context) {
	if requestID := getRequestID(c); requestID != "" {
		c.Header("X-Request-ID", requestID)
	}
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

func handleValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		violations := make([]models.ValidationError, 0, len(validationErrors))
		for _, validationError := range validationErrors {
			violations = append(violations, models.ValidationError{
				Field:   strings.ToLower(validationError.Field()),
				Message: getValidationMessage(validationError),
				Code:    validationError.Tag(),
			})
		}

		problem := models.NewMultiValidationProblem(violations)
		c.JSON(400, problem)
		return
	}

	problem := models.NewProblemDetails(400, "Bad Request", err.Error())
	c.JSON(400, problem)
}

// handleDomainError translates engine sentinel errors into problem
// responses. Anything unrecognized is an internal error.
func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity):
		problem := models.NewValidationProblem("quantity", err.Error(), models.ErrorCodeInvalidQuantity)
		c.JSON(400, problem)
	case errors.Is(err, models.ErrInsufficientQuantity):
		problem := models.NewBusinessLogicProblem(409, "Insufficient Quantity", err.Error(), models.ErrorCodeInsufficientQuantity)
		c.JSON(409, problem)
	case errors.Is(err, models.ErrListingNotFound):
		c.JSON(404, models.NewNotFoundProblem("Listing"))
	case errors.Is(err, models.ErrReservationNotFound):
		c.JSON(404, models.NewNotFoundProblem("Reservation"))
	case errors.Is(err, models.ErrReservationNotPending):
		problem := models.NewBusinessLogicProblem(422, "Invalid Status", err.Error(), models.ErrorCodeNotPending)
		c.JSON(422, problem)
	case errors.Is(err, models.ErrReservationExpired):
		problem := models.NewBusinessLogicProblem(422, "Reservation Expired", err.Error(), models.ErrorCodeReservationExpired)
		c.JSON(422, problem)
	case errors.Is(err, models.ErrInvalidExpiry):
		problem := models.NewBusinessLogicProblem(422, "Invalid Expiry", err.Error(), models.ErrorCodeInvalidExpiry)
		c.JSON(422, problem)
	case errors.Is(err, models.ErrUnauthorized):
		problem := models.NewBusinessLogicProblem(403, "Forbidden", err.Error(), models.ErrorCodeUnauthorized)
		c.JSON(403, problem)
	case errors.Is(err, models.ErrTransientStorage):
		problem := models.NewBusinessLogicProblem(503, "Service Unavailable", "Temporary storage contention, retry the request", models.ErrorCodeTransientStorage)
		c.JSON(503, problem)
	default:
		problem := models.NewProblemDetails(500, "Internal Server Error", "An unexpected error occurred")

		log.Error().
			Str("request_id", getRequestID(c)).
			Err(err).
			Msg("Unhandled engine error")

		c.JSON(500, problem)
	}
}

func handleInternalError(c *gin.Context, err error) {
	problem := models.NewProblemDetails(500, "Internal Server Error", "An unexpected error occurred")

	log.Error().
		Str("request_id", getRequestID(c)).
		Err(err).
		Msg("Internal server error")

	c.JSON(500, problem)
}

func getValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too small"
	case "max":
		return "Value is too large"
	case "len":
		return "Value has the wrong length"
	case "oneof":
		return "Value is not one of the allowed options"
	default:
		return "Invalid value"
	}
}

// Create a global instance for easy access
var Response = &ResponseHelpers{}
