package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/api"
	"github.com/voltgrid/voltgrid/internal/app"
	iauth "github.com/voltgrid/voltgrid/internal/auth"
	"github.com/voltgrid/voltgrid/internal/database"
	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/logger"
)

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("retrieve database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}

func buildServices(db *gorm.DB, engine *access.Engine, jwt *iauth.JWTService) (*api.Services, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	auth, err := services.NewAuthService(db, jwt, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	roles, err := services.NewRoleService(db, engine, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise role service: %w", err)
	}

	users, err := services.NewUserService(db, engine, roles, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	organizations, err := services.NewOrganizationService(db, engine, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise organization service: %w", err)
	}

	departments, err := services.NewDepartmentService(db, engine, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise department service: %w", err)
	}

	permissions, err := services.NewPermissionService(db, engine, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise permission service: %w", err)
	}

	devices, err := services.NewDeviceService(db, engine, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise device service: %w", err)
	}

	deviceModels, err := services.NewDeviceModelService(db, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise device model service: %w", err)
	}

	telemetry, err := services.NewTelemetryService(db, devices)
	if err != nil {
		return nil, fmt.Errorf("initialise telemetry service: %w", err)
	}

	return &api.Services{
		Auth:          auth,
		Users:         users,
		Organizations: organizations,
		Departments:   departments,
		Roles:         roles,
		Permissions:   permissions,
		Devices:       devices,
		DeviceModels:  deviceModels,
		Telemetry:     telemetry,
		Audit:         audit,
	}, nil
}
