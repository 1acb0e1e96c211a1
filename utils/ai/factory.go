package ai

import (
	"fmt"
	"os"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/models"
)

// NewTransport builds the Transport named by cfg.Kind, defaulting to
// stdout when Kind is empty so a fresh install works without any
// configuration.
func NewTransport(cfg config.TransportConfig, envCfg *config.EnvConfig) (Transport, error) {
	switch cfg.Kind {
	case "", "stdout":
		return &StdoutTransport{Writer: os.Stdout}, nil
	case "command":
		return &CommandTransport{Command: cfg.Command, Mode: cfg.Mode}, nil
	case "api":
		provider := models.DetectProvider(cfg.Model)
		if err := provider.Configure(envCfg.Provider(provider.Name())); err != nil {
			return nil, fmt.Errorf("configuring %s provider: %w", provider.Name(), err)
		}
		return &ApiTransport{Provider: provider, Model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unknown AI transport kind %q", cfg.Kind)
	}
}
