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

// EngineHandler handles HTTP requests for reservation write operations
type EngineHandler struct {
	engine interfaces.ReservationEngine
}

// NewEngineHandler creates a new engine API handler
func NewEngineHandler(engine interfaces.ReservationEngine) *EngineHandler {
	return &EngineHandler{
		engine: engine,
	}
}

// SetupEngineRoutes sets up the HTTP routes for the reservation API
func (h *EngineHandler) SetupEngineRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(ErrorHandlerMiddleware())
	r.Use(corsMiddleware())

	// Health check and metrics
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/listings/:listing_id/reservations", h.createReservation)
		api.POST("/reservations/batch", h.batchCreateReservations)
		api.POST("/reservations/:id/confirm", h.confirmReservation)
		api.POST("/reservations/:id/cancel", h.cancelReservation)
		api.POST("/reservations/:id/extend", h.extendReservation)
	}

	return r
}

// createReservation handles hold creation requests
func (h *EngineHandler) createReservation(c *gin.Context) {
	listingID := c.Param("listing_id")
	if listingID == "" {
		Response.ValidationError(c, "listing_id", "Listing ID is required")
		return
	}

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind create reservation request")
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	reservation, err := h.engine.Create(c.Request.Context(), listingID, &req)
	if err != nil {
		log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to create reservation")
		Response.DomainError(c, err)
		return
	}

	Response.Created(c, models.NewReservationResponse(reservation))
}

// batchCreateReservations handles cart checkout requests
func (h *EngineHandler) batchCreateReservations(c *gin.Context) {
	var req models.BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind batch create request")
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	reservations, err := h.engine.BatchCreate(c.Request.Context(), &req)
	if err != nil {
		log.Error().Err(err).Str("buyer_id", req.BuyerID).Msg("Failed to batch create reservations")
		Response.DomainError(c, err)
		return
	}

	response := &models.BatchCreateResponse{
		Reservations: make([]*models.ReservationResponse, 0, len(reservations)),
	}
	for _, reservation := range reservations {
		response.Reservations = append(response.Reservations, models.NewReservationResponse(reservation))
	}

	Response.Created(c, response)
}

// confirmReservation handles seller confirmation requests
func (h *EngineHandler) confirmReservation(c *gin.Context) {
	reservationID, ok := h.parseReservationID(c)
	if !ok {
		return
	}

	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind confirm request")
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	if err := h.engine.Confirm(c.Request.Context(), reservationID, req.SellerID); err != nil {
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to confirm reservation")
		Response.DomainError(c, err)
		return
	}

	Response.NoContent(c)
}

// cancelReservation handles cancellation requests
func (h *EngineHandler) cancelReservation(c *gin.Context) {
	reservationID, ok := h.parseReservationID(c)
	if !ok {
		return
	}

	var req models.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind cancel request")
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	if err := h.engine.Cancel(c.Request.Context(), reservationID, req.ActorID, req.ActorRole); err != nil {
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to cancel reservation")
		Response.DomainError(c, err)
		return
	}

	Response.NoContent(c)
}

// extendReservation handles deadline extension requests
func (h *EngineHandler) extendReservation(c *gin.Context) {
	reservationID, ok := h.parseReservationID(c)
	if !ok {
		return
	}

	var req models.ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind extend request")
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	if err := h.engine.Extend(c.Request.Context(), reservationID, &req); err != nil {
		log.Error().Err(err).Str("reservation_id", reservationID.String()).Msg("Failed to extend reservation")
		Response.DomainError(c, err)
		return
	}

	Response.NoContent(c)
}

func (h *EngineHandler) parseReservationID(c *gin.Context) (uuid.UUID, bool) {
	reservationIDStr := c.Param("id")
	if reservationIDStr == "" {
		Response.ValidationError(c, "id", "Reservation ID is required")
		return uuid.Nil, false
	}

	reservationID, err := uuid.Parse(reservationIDStr)
	if err != nil {
		Response.ValidationError(c, "id", "Invalid reservation ID format")
		return uuid.Nil, false
	}
	return reservationID, true
}

// healthCheck handles health check requests
func (h *EngineHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "reservation-api",
	})
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
