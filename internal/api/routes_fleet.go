package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerFleetRoutes(api *gin.RouterGroup, devices *handlers.DeviceHandler, models *handlers.DeviceModelHandler) {
	deviceGroup := api.Group("/devices")
	{
		deviceGroup.GET("", middleware.RequirePermission("device.view"), devices.List)
		deviceGroup.GET("/warranty/expiring", middleware.RequirePermission("warranty.view"), devices.ExpiringWarranties)
		deviceGroup.GET("/:id", middleware.RequirePermission("device.view"), devices.Get)
		deviceGroup.POST("", middleware.RequirePermission("device.create"), devices.Register)
		deviceGroup.PATCH("/:id", middleware.RequirePermission("device.edit"), devices.Update)
		deviceGroup.PUT("/:id/mqtt", middleware.RequirePermission("device.edit"), devices.UpdateMQTTConfig)
		deviceGroup.DELETE("/:id", middleware.RequirePermission("device.delete"), devices.Delete)
	}

	modelGroup := api.Group("/device-models")
	{
		modelGroup.GET("", middleware.RequirePermission("device_model.view"), models.List)
		modelGroup.GET("/:id", middleware.RequirePermission("device_model.view"), models.Get)
		modelGroup.POST("", middleware.RequirePermission("device_model.manage"), models.Create)
		modelGroup.PATCH("/:id", middleware.RequirePermission("device_model.manage"), models.Update)
		modelGroup.DELETE("/:id", middleware.RequirePermission("device_model.manage"), models.Delete)
	}
}
