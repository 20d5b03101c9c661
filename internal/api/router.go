package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/app"
	iauth "github.com/voltgrid/voltgrid/internal/auth"
	"github.com/voltgrid/voltgrid/internal/handlers"
	"github.com/voltgrid/voltgrid/internal/middleware"
	"github.com/voltgrid/voltgrid/internal/services"
)

// Services bundles the application services the router exposes over HTTP.
type Services struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Organizations *services.OrganizationService
	Departments   *services.DepartmentService
	Roles         *services.RoleService
	Permissions   *services.PermissionService
	Devices       *services.DeviceService
	DeviceModels  *services.DeviceModelService
	Telemetry     *services.TelemetryService
	Audit         *services.AuditService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, engine *access.Engine, jwt *iauth.JWTService, cfg *app.Config, svcs *Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if engine == nil {
		return nil, fmt.Errorf("access engine must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(svcs.Auth)
	registerPublicAuthRoutes(r, authHandler)

	// Protected routes: every request resolves the caller's permission set
	// and scope exactly once, then individual groups gate on permission codes.
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	api.Use(middleware.AccessContext(engine))

	registerAuthRoutes(api, authHandler)
	registerUserRoutes(api, handlers.NewUserHandler(svcs.Users))
	registerTenancyRoutes(api,
		handlers.NewOrganizationHandler(svcs.Organizations),
		handlers.NewDepartmentHandler(svcs.Departments))
	registerAccessRoutes(api, handlers.NewPermissionHandler(svcs.Permissions, svcs.Roles))
	registerFleetRoutes(api,
		handlers.NewDeviceHandler(svcs.Devices),
		handlers.NewDeviceModelHandler(svcs.DeviceModels))
	registerTelemetryRoutes(api, handlers.NewTelemetryHandler(svcs.Telemetry))
	registerAuditRoutes(api, handlers.NewAuditHandler(svcs.Audit))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
