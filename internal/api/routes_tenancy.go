package api

import (
	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
)

func registerTenancyRoutes(api *gin.RouterGroup, orgs *handlers.OrganizationHandler, depts *handlers.DepartmentHandler) {
	orgGroup := api.Group("/organizations")
	{
		orgGroup.GET("", middleware.RequirePermission("organization.view"), orgs.List)
		orgGroup.GET("/:id", middleware.RequirePermission("organization.view"), orgs.Get)
		orgGroup.POST("", middleware.RequirePermission(access.PermOrganizationManage), orgs.Create)
		orgGroup.PATCH("/:id", middleware.RequirePermission(access.PermOrganizationManage), orgs.Update)
		orgGroup.DELETE("/:id", middleware.RequirePermission(access.PermOrganizationManage), orgs.Delete)
	}

	deptGroup := api.Group("/departments")
	{
		deptGroup.GET("", middleware.RequirePermission("department.view"), depts.List)
		deptGroup.GET("/:id", middleware.RequirePermission("department.view"), depts.Get)
		deptGroup.POST("", middleware.RequirePermission(access.PermDepartmentManage), depts.Create)
		deptGroup.PATCH("/:id", middleware.RequirePermission(access.PermDepartmentManage), depts.Update)
		deptGroup.DELETE("/:id", middleware.RequirePermission(access.PermDepartmentManage), depts.Delete)
	}
}
