package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerAccessRoutes(api *gin.RouterGroup, h *handlers.PermissionHandler) {
	perms := api.Group("/permissions")
	{
		perms.GET("", middleware.RequirePermission("permission.view"), h.ListCatalog)
		perms.POST("/grant", middleware.RequirePermission("permission.manage"), h.Grant)
		perms.POST("/revoke", middleware.RequirePermission("permission.manage"), h.Revoke)
		perms.POST("/bulk", middleware.RequirePermission("permission.manage"), h.BulkUpdate)
	}

	api.GET("/users/:id/permissions", middleware.RequirePermission("permission.view"), h.EffectivePermissions)
	api.GET("/users/:id/overrides", middleware.RequirePermission("permission.view"), h.ListOverrides)

	roles := api.Group("/roles")
	{
		roles.GET("", middleware.RequirePermission("role.view"), h.ListRoles)
		roles.GET("/:id", middleware.RequirePermission("role.view"), h.GetRole)
		roles.POST("", middleware.RequirePermission("role.manage"), h.CreateRole)
		roles.PATCH("/:id", middleware.RequirePermission("role.manage"), h.UpdateRole)
		roles.PUT("/:id/permissions", middleware.RequirePermission("role.manage"), h.SetRolePermissions)
		roles.DELETE("/:id", middleware.RequirePermission("role.manage"), h.DeleteRole)
		roles.POST("/assign", middleware.RequirePermission("role.manage"), h.AssignRole)
		roles.POST("/revoke", middleware.RequirePermission("role.manage"), h.RevokeRole)
	}
}
