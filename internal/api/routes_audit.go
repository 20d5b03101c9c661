package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerAuditRoutes(api *gin.RouterGroup, h *handlers.AuditHandler) {
	api.GET("/audit-logs", middleware.RequirePermission("audit.view"), h.List)
}
