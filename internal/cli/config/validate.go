package config

import (
	"fmt"
	"net/url"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if c.MarquezURL == "" {
		return fmt.Errorf("marquez_url is required")
	}
	u, err := url.Parse(c.MarquezURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("marquez_url %q is not a valid URL", c.MarquezURL)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("output must be text, json, or yaml, got %q", c.Output)
	}
	return nil
}
