package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerUserRoutes(api *gin.RouterGroup, h *handlers.UserHandler) {
	// Password changes apply to the caller's own account and need no
	// permission beyond authentication.
	api.POST("/users/me/password", h.ChangePassword)

	users := api.Group("/users")
	{
		users.GET("", middleware.RequirePermission("user.view"), h.List)
		users.GET("/:id", middleware.RequirePermission("user.view"), h.Get)
		users.POST("", middleware.RequirePermission("user.create"), h.Create)
		users.PATCH("/:id", middleware.RequirePermission("user.edit"), h.Update)
		users.DELETE("/:id", middleware.RequirePermission("user.delete"), h.Delete)
	}
}
