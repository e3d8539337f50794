package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/interfaces"
	"reservation-service/internal/models"
)

// ReaderHandler handles HTTP requests for read operations
type ReaderHandler struct {
	readerService interfaces.ReaderService
}

// NewReaderHandler creates a new reader API handler
func NewReaderHandler(readerService interfaces.ReaderService) *ReaderHandler {
	return &ReaderHandler{
		readerService: readerService,
	}
}

// SetupReaderRoutes sets up the HTTP routes for the reader service
func (h *ReaderHandler) SetupReaderRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(ErrorHandlerMiddleware())
	r.Use(h.corsMiddleware())

	// Health check and metrics
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/listings/:listing_id/availability", h.getAvailability)
		api.GET("/listings/:listing_id/reservations", h.listByListing)
		api.GET("/reservations/:id", h.getReservation)
		api.GET("/buyers/:buyer_id/reservations", h.listByBuyer)
		api.GET("/sellers/:seller_id/reservations", h.listBySeller)
	}

	return r
}

// getAvailability handles listing availability requests
func (h *ReaderHandler) getAvailability(c *gin.Context) {
	listingID := c.Param("listing_id")
	if listingID == "" {
		Response.ValidationError(c, "listing_id", "Listing ID is required")
		return
	}

	availability, err := h.readerService.GetAvailability(c.Request.Context(), listingID)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to get availability")
		Response.DomainError(c, err)
		return
	}

	Response.Success(c, availability)
}

// getReservation handles single reservation lookups
func (h *ReaderHandler) getReservation(c *gin.Context) {
	reservationIDStr := c.Param("id")

	reservationID, err := uuid.Parse(reservationIDStr)
	if err != nil {
		Response.ValidationError(c, "id", "Invalid reservation ID format")
		return
	}

	reservation, err := h.readerService.GetReservation(c.Request.Context(), reservationID)
	if err != nil {
		log.Error().Err(err).Str("reservation_id", reservationIDStr).Msg("Failed to get reservation")
		Response.DomainError(c, err)
		return
	}
	if reservation == nil {
		Response.NotFound(c, "Reservation")
		return
	}

	Response.Success(c, models.NewReservationResponse(reservation))
}

// listByBuyer handles buyer reservation listings
func (h *ReaderHandler) listByBuyer(c *gin.Context) {
	buyerID := c.Param("buyer_id")
	if buyerID == "" {
		Response.ValidationError(c, "buyer_id", "Buyer ID is required")
		return
	}

	reservations, err := h.readerService.ListByBuyer(c.Request.Context(), buyerID)
	if err != nil {
		log.Error().Err(err).Str("buyer_id", buyerID).Msg("Failed to list buyer reservations")
		Response.DomainError(c, err)
		return
	}

	Response.Success(c, reservationResponses(reservations))
}

// listBySeller handles seller reservation listings
func (h *ReaderHandler) listBySeller(c *gin.Context) {
	sellerID := c.Param("seller_id")
	if sellerID == "" {
		Response.ValidationError(c, "seller_id", "Seller ID is required")
		return
	}

	reservations, err := h.readerService.ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		log.Error().Err(err).Str("seller_id", sellerID).Msg("Failed to list seller reservations")
		Response.DomainError(c, err)
		return
	}

	Response.Success(c, reservationResponses(reservations))
}

// listByListing handles listing reservation listings
func (h *ReaderHandler) listByListing(c *gin.Context) {
	listingID := c.Param("listing_id")
	if listingID == "" {
		Response.ValidationError(c, "listing_id", "Listing ID is required")
		return
	}

	reservations, err := h.readerService.ListByListing(c.Request.Context(), listingID)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to list listing reservations")
		Response.DomainError(c, err)
		return
	}

	Response.Success(c, reservationResponses(reservations))
}

func reservationResponses(reservations []models.Reservation) []*models.ReservationResponse {
	responses := make([]*models.ReservationResponse, 0, len(reservations))
	for i := range reservations {
		responses = append(responses, models.NewReservationResponse(&reservations[i]))
	}
	return responses
}

// healthCheck handles health check requests
func (h *ReaderHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "reservation-reader",
	})
}

// corsMiddleware handles CORS headers
func (h *ReaderHandler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
