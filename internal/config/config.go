// Package config loads service configuration. Precedence, highest first:
// command-line flags, SSA_* environment variables, the YAML config file,
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/totoccar/SpaceSituationalAwareness/internal/auth"
	"github.com/totoccar/SpaceSituationalAwareness/internal/catalog"
	"github.com/totoccar/SpaceSituationalAwareness/internal/classify"
	"github.com/totoccar/SpaceSituationalAwareness/internal/ratelimit"
	"github.com/totoccar/SpaceSituationalAwareness/internal/stream"
)

// EnvPrefix is prepended to every environment override, e.g.
// SSA_SERVER_ADDR or SSA_CATALOG_TTL.
const EnvPrefix = "SSA"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Catalog    CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Stream     stream.Config    `mapstructure:"stream" yaml:"stream"`
	Auth       auth.Config      `mapstructure:"auth" yaml:"auth"`
	RateLimit  ratelimit.Config `mapstructure:"ratelimit" yaml:"ratelimit"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxBatch        int           `mapstructure:"max_batch" yaml:"max_batch"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
}

// ClassifierConfig tunes the heuristic classifier.
type ClassifierConfig struct {
	Weights   classify.Weights `mapstructure:"weights" yaml:"weights"`
	Threshold float64          `mapstructure:"threshold" yaml:"threshold"`
}

// CatalogConfig controls the satellite catalog source.
type CatalogConfig struct {
	SourceURL   string        `mapstructure:"source_url" yaml:"source_url"`
	ExtraURLs   []string      `mapstructure:"extra_urls" yaml:"extra_urls"`
	TTL         time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SnapshotDir string        `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	MaxFiles    int           `mapstructure:"max_files" yaml:"max_files"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig governs OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Exporter    string  `mapstructure:"exporter" yaml:"exporter"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// SetDefaults registers every key with its default. Registering all keys
// is also what lets AutomaticEnv see them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	w := classify.DefaultWeights()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_batch", 500)
	v.SetDefault("server.workers", runtime.NumCPU())

	v.SetDefault("classifier.weights.name_hint", w.NameHint)
	v.SetDefault("classifier.weights.regime", w.Regime)
	v.SetDefault("classifier.weights.plausibility", w.Plausibility)
	v.SetDefault("classifier.threshold", classify.DefaultThreshold)

	v.SetDefault("catalog.source_url", catalog.DefaultSourceURL)
	v.SetDefault("catalog.extra_urls", []string{})
	v.SetDefault("catalog.ttl", catalog.DefaultTTL)
	v.SetDefault("catalog.snapshot_dir", filepath.Join(os.TempDir(), "ssa-classifier", "catalog"))
	v.SetDefault("catalog.max_files", 5)

	v.SetDefault("stream.max_concurrent_per_ip", 4)
	v.SetDefault("stream.max_concurrent", 200)
	v.SetDefault("stream.keepalive_interval", 15*time.Second)
	v.SetDefault("stream.max_items", 5000)
	v.SetDefault("stream.workers", runtime.NumCPU())

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 20.0)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("ratelimit.trust_proxy", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "ssa-classifier")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads configuration into a validated Config. An explicit cfgFile
// must exist; otherwise config.yaml is looked up in the working directory
// and ~/.ssa-classifier and silently skipped when absent.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ssa-classifier"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Stream.TrustProxy = cfg.RateLimit.TrustProxy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr must not be empty")
	}
	if c.Server.MaxBatch < 1 {
		add("server.max_batch must be at least 1, got %d", c.Server.MaxBatch)
	}
	if c.Server.Workers < 1 {
		add("server.workers must be at least 1, got %d", c.Server.Workers)
	}

	if err := c.Classifier.Weights.Validate(); err != nil {
		add("classifier.weights: %w", err)
	}
	if !classify.ValidThreshold(c.Classifier.Threshold) {
		add("classifier.threshold must be in [0, 1], got %v", c.Classifier.Threshold)
	}

	if c.Catalog.SourceURL == "" {
		add("catalog.source_url must not be empty")
	}
	if c.Catalog.TTL <= 0 {
		add("catalog.ttl must be positive, got %s", c.Catalog.TTL)
	}
	if c.Catalog.MaxFiles < 1 {
		add("catalog.max_files must be at least 1, got %d", c.Catalog.MaxFiles)
	}

	if c.Stream.MaxConcurrentPerIP < 1 {
		add("stream.max_concurrent_per_ip must be at least 1, got %d", c.Stream.MaxConcurrentPerIP)
	}
	if c.Stream.KeepaliveInterval <= 0 {
		add("stream.keepalive_interval must be positive, got %s", c.Stream.KeepaliveInterval)
	}

	if c.Auth.Enabled && c.Auth.Token == "" {
		add("auth.token is required when auth is enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			add("ratelimit.requests_per_second must be positive, got %v", c.RateLimit.RequestsPerSecond)
		}
		if c.RateLimit.Burst < 1 {
			add("ratelimit.burst must be at least 1, got %d", c.RateLimit.Burst)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		add("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout", "otlp":
		default:
			add("tracing.exporter must be stdout or otlp, got %q", c.Tracing.Exporter)
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		add("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
