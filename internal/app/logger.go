package app

import (
	"fmt"

	"github.com/voltgrid/voltgrid/pkg/logger"
)

// ConfigureLogging initialises the global logger from configuration.
func ConfigureLogging(cfg *Config) error {
	level := "info"
	if cfg != nil && cfg.Server.LogLevel != "" {
		level = cfg.Server.LogLevel
	}
	if err := logger.Init(level); err != nil {
		return fmt.Errorf("config: init logger: %w", err)
	}
	return nil
}
