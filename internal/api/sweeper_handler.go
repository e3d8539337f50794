package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SweeperHandler serves the sweeper's health and metrics endpoints.
// The sweeper exposes no business routes; its work runs in background
// loops.
type SweeperHandler struct {
}

// NewSweeperHandler creates a new sweeper API handler
func NewSweeperHandler() *SweeperHandler {
	return &SweeperHandler{}
}

// SetupSweeperRoutes sets up the HTTP routes for the sweeper service
func (h *SweeperHandler) SetupSweeperRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// healthCheck handles health check requests
func (h *SweeperHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "reservation-sweeper",
	})
}
