package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lineforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	defer ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultManifest, cfg.Manifest)
	assert.Equal(t, DefaultMarquezURL, cfg.MarquezURL)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, DefaultRootNS, cfg.RootNamespace)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfigFromFile(t *testing.T) {
	defer ResetConfig()
	path := writeConfigFile(t, `
marquez_url: http://marquez.internal:5000
namespace: analytics
concurrency: 8
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://marquez.internal:5000", cfg.MarquezURL)
	assert.Equal(t, "analytics", cfg.Namespace)
	assert.Equal(t, 8, cfg.Concurrency)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultManifest, cfg.Manifest)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	defer ResetConfig()
	path := writeConfigFile(t, "namespace: from_file\n")
	t.Setenv("LINEFORGE_NAMESPACE", "from_env")
	t.Setenv("LINEFORGE_API_KEY", "sekrit")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Namespace)
	assert.Equal(t, "sekrit", cfg.APIKey)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	defer ResetConfig()
	t.Setenv("LINEFORGE_NAMESPACE", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("namespace", DefaultNamespace, "")
	flags.String("root-namespace", DefaultRootNS, "")
	require.NoError(t, flags.Parse([]string{"--namespace", "from_flag"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.Namespace)
	// Unchanged flags must not mask lower layers with their defaults.
	assert.Equal(t, DefaultRootNS, cfg.RootNamespace)
}

func TestLoadConfigKebabFlagMapsToSnakeKey(t *testing.T) {
	defer ResetConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("root-namespace", DefaultRootNS, "")
	require.NoError(t, flags.Parse([]string{"--root-namespace", "s3://lake"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "s3://lake", cfg.RootNamespace)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	defer ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestGetCurrentConfig(t *testing.T) {
	defer ResetConfig()
	assert.Nil(t, GetCurrentConfig())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Manifest:    "target/manifest.json",
			MarquezURL:  "http://localhost:5000",
			Concurrency: 1,
			Output:      "text",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing manifest", func(c *Config) { c.Manifest = "" }},
		{"missing url", func(c *Config) { c.MarquezURL = "" }},
		{"relative url", func(c *Config) { c.MarquezURL = "localhost:5000" }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"bad output", func(c *Config) { c.Output = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
