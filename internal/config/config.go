// Package config provides configuration management for the paper aggregator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "SCHOLAR"

// MaxScanLimit bounds paper_sources.<biorxiv|medrxiv>.max_scan.
const MaxScanLimit = 10000

// Config holds all configuration for the paper aggregator.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Aggregator contains fan-out settings.
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	// Downloads contains PDF download settings.
	Downloads DownloadsConfig `mapstructure:"downloads"`
	// Analysis contains local PDF analysis settings.
	Analysis AnalysisConfig `mapstructure:"analysis"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, discard).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// AggregatorConfig holds fan-out configuration.
type AggregatorConfig struct {
	// SourceTimeout bounds a single adapter invocation.
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	// MaxConcurrency limits concurrently running adapters (0 = unlimited).
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// Order lists the registry order of the sources. It decides which record
	// wins when an "all" search finds the same paper twice.
	Order []string `mapstructure:"order"`
}

// DownloadsConfig holds PDF download configuration.
type DownloadsConfig struct {
	// Dir is the directory PDFs are written to.
	Dir string `mapstructure:"dir"`
	// MaxSize is the maximum PDF size in bytes.
	MaxSize int64 `mapstructure:"max_size"`
	// Timeout bounds a single download.
	Timeout time.Duration `mapstructure:"timeout"`
	// UserAgent is sent with every download request.
	UserAgent string `mapstructure:"user_agent"`
}

// AnalysisConfig holds local PDF analysis configuration.
type AnalysisConfig struct {
	// BatchConcurrency bounds concurrent PDF extraction.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
	// BatchLimit caps the files analyzed from one folder.
	BatchLimit int `mapstructure:"batch_limit"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// PubMed contains NCBI E-utilities settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// BioRxiv contains bioRxiv API settings.
	BioRxiv PaperSourceConfig `mapstructure:"biorxiv"`
	// MedRxiv contains medRxiv API settings.
	MedRxiv PaperSourceConfig `mapstructure:"medrxiv"`
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// SciHub contains CrossRef index and mirror settings.
	SciHub SciHubConfig `mapstructure:"scihub"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. SCHOLAR_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per request.
	MaxResults int `mapstructure:"max_results"`
	// MaxScan bounds the listing records one bioRxiv/medRxiv search examines.
	MaxScan int `mapstructure:"max_scan"`
}

// PubMedConfig holds NCBI E-utilities settings.
type PubMedConfig struct {
	PaperSourceConfig `mapstructure:",squash"`
	// Tool and Email identify the caller to NCBI.
	Tool  string `mapstructure:"tool"`
	Email string `mapstructure:"email"`
}

// SciHubConfig holds the CrossRef index and mirror settings.
type SciHubConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// CrossRefURL is the CrossRef REST API base URL.
	CrossRefURL string `mapstructure:"crossref_url"`
	// Mirror is the base URL of the mirror DOIs are resolved against.
	Mirror string `mapstructure:"mirror"`
	// Mailto is sent to CrossRef to join its polite pool.
	Mailto string `mapstructure:"mailto"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum CrossRef requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// ResolveConcurrency bounds concurrent mirror lookups.
	ResolveConcurrency int `mapstructure:"resolve_concurrency"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and an optional
// config.yaml found in the standard locations.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// standard locations; a missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/scholar-aggregator")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" so config files cannot set them.
func loadSecrets(cfg *Config) {
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.PubMed.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "scholar")

	// Aggregator defaults
	v.SetDefault("aggregator.source_timeout", "30s")
	v.SetDefault("aggregator.max_concurrency", 0)
	v.SetDefault("aggregator.order", []string{"pubmed", "biorxiv", "medrxiv", "arxiv", "semantic_scholar", "scihub"})

	// Download defaults
	v.SetDefault("downloads.dir", "downloads")
	v.SetDefault("downloads.max_size", 100*1024*1024)
	v.SetDefault("downloads.timeout", "60s")
	v.SetDefault("downloads.user_agent", "scholar-aggregator/1.0")

	// Analysis defaults
	v.SetDefault("analysis.batch_concurrency", 4)
	v.SetDefault("analysis.batch_limit", 10)

	// Paper sources defaults - PubMed
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key
	v.SetDefault("paper_sources.pubmed.max_results", 100)
	v.SetDefault("paper_sources.pubmed.tool", "scholar-aggregator")
	v.SetDefault("paper_sources.pubmed.email", "")

	// Paper sources defaults - bioRxiv / medRxiv
	for _, server := range []string{"biorxiv", "medrxiv"} {
		prefix := "paper_sources." + server
		v.SetDefault(prefix+".enabled", true)
		v.SetDefault(prefix+".base_url", "https://api.biorxiv.org")
		v.SetDefault(prefix+".timeout", "30s")
		v.SetDefault(prefix+".rate_limit", 2.0)
		v.SetDefault(prefix+".max_results", 100)
		v.SetDefault(prefix+".max_scan", MaxScanLimit)
	}

	// Paper sources defaults - arXiv
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 0.34) // arXiv asks for one request every three seconds
	v.SetDefault("paper_sources.arxiv.max_results", 1000)

	// Paper sources defaults - Semantic Scholar
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 10.0)
	v.SetDefault("paper_sources.semantic_scholar.max_results", 100)

	// Paper sources defaults - Sci-Hub
	v.SetDefault("paper_sources.scihub.enabled", true)
	v.SetDefault("paper_sources.scihub.crossref_url", "https://api.crossref.org")
	v.SetDefault("paper_sources.scihub.mirror", "https://sci-hub.se")
	v.SetDefault("paper_sources.scihub.mailto", "")
	v.SetDefault("paper_sources.scihub.timeout", "30s")
	v.SetDefault("paper_sources.scihub.rate_limit", 2.0)
	v.SetDefault("paper_sources.scihub.resolve_concurrency", 4)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate aggregator and downloads
	if c.Aggregator.SourceTimeout <= 0 {
		return fmt.Errorf("aggregator source_timeout must be positive")
	}
	if c.Aggregator.MaxConcurrency < 0 {
		return fmt.Errorf("aggregator max_concurrency must not be negative")
	}
	if c.Downloads.Timeout <= 0 {
		return fmt.Errorf("downloads timeout must be positive")
	}
	if c.Downloads.MaxSize <= 0 {
		return fmt.Errorf("downloads max_size must be positive")
	}

	// Validate paper sources
	timeouts := map[string]time.Duration{
		"pubmed":           c.PaperSources.PubMed.Timeout,
		"biorxiv":          c.PaperSources.BioRxiv.Timeout,
		"medrxiv":          c.PaperSources.MedRxiv.Timeout,
		"arxiv":            c.PaperSources.ArXiv.Timeout,
		"semantic_scholar": c.PaperSources.SemanticScholar.Timeout,
		"scihub":           c.PaperSources.SciHub.Timeout,
	}
	for name, timeout := range timeouts {
		if timeout <= 0 {
			return fmt.Errorf("paper source %s timeout must be positive", name)
		}
	}
	for name, scan := range map[string]int{"biorxiv": c.PaperSources.BioRxiv.MaxScan, "medrxiv": c.PaperSources.MedRxiv.MaxScan} {
		if scan < 1 || scan > MaxScanLimit {
			return fmt.Errorf("paper source %s max_scan must be between 1 and %d, got %d", name, MaxScanLimit, scan)
		}
	}

	known := map[string]bool{
		"pubmed": true, "biorxiv": true, "medrxiv": true,
		"arxiv": true, "semantic_scholar": true, "scihub": true,
	}
	seen := make(map[string]bool, len(c.Aggregator.Order))
	for _, name := range c.Aggregator.Order {
		if !known[name] {
			return fmt.Errorf("unknown source in aggregator order: %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate source in aggregator order: %q", name)
		}
		seen[name] = true
	}

	return nil
}
