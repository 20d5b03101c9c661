package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5*time.Minute, cfg.Access.CacheTTL)
	require.Equal(t, 10000, cfg.Access.CacheMaxEntries)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "@every 1m", cfg.Maintenance.CacheSweepSchedule)
	require.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("VOLTGRID_SERVER_PORT", "9100")
	t.Setenv("VOLTGRID_ACCESS_CACHE_TTL", "30s")
	t.Setenv("VOLTGRID_DATABASE_DRIVER", "postgres")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Access.CacheTTL)
	require.Equal(t, "postgres", cfg.Database.Driver)
}

func TestDatabaseSettingsPostgres(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Host:     "db.internal",
			Port:     5433,
			Database: "voltgrid",
			Username: "grid",
			Password: "secret",
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "voltgrid", settings.Name)
	require.Equal(t, "grid", settings.User)
	require.Equal(t, "secret", settings.Password)
}
