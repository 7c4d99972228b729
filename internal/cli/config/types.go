// Package config provides configuration management for the LineForge CLI.
//
// Configuration layers, lowest to highest precedence: built-in defaults,
// lineforge.yaml, LINEFORGE_* environment variables, command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Manifest is the path to the compiled manifest JSON.
	Manifest string `koanf:"manifest"`

	// MarquezURL is the base URL of the lineage store.
	MarquezURL string `koanf:"marquez_url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `koanf:"api_key"`
	// Retries is the retry attempt count for store requests.
	Retries int `koanf:"retries"`
	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `koanf:"timeout_seconds"`
	// RateLimit caps store requests per second. 0 means unlimited.
	RateLimit float64 `koanf:"rate_limit"`

	// Namespace is the job namespace events are reported under.
	Namespace string `koanf:"namespace"`
	// RootNamespace is the dataset namespace for models without a
	// storage location.
	RootNamespace string `koanf:"root_namespace"`
	// Producer is the producer URI stamped on emitted events.
	Producer string `koanf:"producer"`
	// Owner is recorded when a namespace has to be created.
	Owner string `koanf:"owner"`

	// SourceName names the data source datasets are registered under.
	SourceName string `koanf:"source_name"`
	// SourceType is the source's type, e.g. POSTGRESQL.
	SourceType string `koanf:"source_type"`
	// SourceURL is the source's connection URL.
	SourceURL string `koanf:"source_url"`

	// Concurrency bounds parallel model synchronization.
	Concurrency int `koanf:"concurrency"`
	// StatePath is the local run-history database. Empty disables history.
	StatePath string `koanf:"state_path"`

	Verbose bool   `koanf:"verbose"`
	Output  string `koanf:"output"`
}

// Default configuration values.
const (
	DefaultManifest    = "target/manifest.json"
	DefaultMarquezURL  = "http://localhost:5000"
	DefaultNamespace   = "default"
	DefaultRootNS      = "warehouse"
	DefaultProducer    = "https://github.com/lineforge/lineforge"
	DefaultSourceName  = "warehouse"
	DefaultSourceType  = "POSTGRESQL"
	DefaultConcurrency = 4
	DefaultRetries     = 3
	DefaultTimeout     = 30
	DefaultStateFile   = ".lineforge/history.db"
	DefaultOutput      = "text"
)
