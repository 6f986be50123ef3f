// Package cli holds the pieces shared by the hub subcommands.
package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/observability"
)

// Init loads configuration and builds the logger every command starts with.
func Init() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
