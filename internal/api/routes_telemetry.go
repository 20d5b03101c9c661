package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerTelemetryRoutes(api *gin.RouterGroup, h *handlers.TelemetryHandler) {
	// Ingestion is keyed by device identity and does not consult user scope,
	// so it only requires an authenticated caller.
	api.POST("/devices/:id/readings", h.Ingest)

	api.GET("/devices/:id/readings", middleware.RequirePermission("telemetry.view"), h.Range)
	api.GET("/devices/:id/readings/latest", middleware.RequirePermission("telemetry.view"), h.Latest)
}
