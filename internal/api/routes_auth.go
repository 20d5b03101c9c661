package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
)

func registerPublicAuthRoutes(r *gin.Engine, h *handlers.AuthHandler) {
	r.POST("/api/auth/login", h.Login)
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler) {
	api.GET("/auth/me", h.Me)
	api.POST("/auth/refresh", h.Refresh)
}
