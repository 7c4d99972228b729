// Package commands implements the lineforge subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lineforge/lineforge/internal/cli/config"
	"github.com/lineforge/lineforge/internal/marquez"
)

// getConfig returns the loaded CLI config, falling back to defaults when
// commands run outside the root command (tests mostly).
func getConfig() *config.Config {
	if c := config.GetCurrentConfig(); c != nil {
		return c
	}
	return &config.Config{
		Manifest:      config.DefaultManifest,
		MarquezURL:    config.DefaultMarquezURL,
		Namespace:     config.DefaultNamespace,
		RootNamespace: config.DefaultRootNS,
		Producer:      config.DefaultProducer,
		SourceName:    config.DefaultSourceName,
		SourceType:    config.DefaultSourceType,
		Concurrency:   config.DefaultConcurrency,
		Retries:       config.DefaultRetries,
		Output:        config.DefaultOutput,
	}
}

// newClient builds the store client from CLI config.
func newClient(cfg *config.Config, logger *slog.Logger) (*marquez.Client, error) {
	return marquez.NewClient(marquez.ClientConfig{
		BaseURL:           cfg.MarquezURL,
		APIKey:            cfg.APIKey,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Retries,
		RequestsPerSecond: cfg.RateLimit,
		Logger:            logger,
	})
}

// renderStructured writes v as JSON or YAML depending on the output format.
func renderStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
