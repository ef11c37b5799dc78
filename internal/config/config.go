// Package config loads the simregress configuration from defaults, an
// optional config file and SIMREGRESS_ environment variables.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vjranagit/simregress/pkg/compare"
	"github.com/vjranagit/simregress/pkg/metrics"
	"github.com/vjranagit/simregress/pkg/storage"
	"github.com/vjranagit/simregress/pkg/unify"
)

// EnvPrefix prefixes every environment variable override, for example
// SIMREGRESS_COMPARE_TOLERANCE.
const EnvPrefix = "SIMREGRESS"

// Config holds the application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Compare CompareConfig `mapstructure:"compare"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig holds reference store and journal configuration
type StorageConfig struct {
	Path             string        `mapstructure:"path"`
	CompressionLevel int           `mapstructure:"compression_level"`
	CacheCapacity    int           `mapstructure:"cache_capacity"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	JournalDir       string        `mapstructure:"journal_dir"`
}

// CompareConfig holds the default comparison settings
type CompareConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
	Metric    string  `mapstructure:"metric"`
	P         float64 `mapstructure:"p"`
	Unify     bool    `mapstructure:"unify"`
	Fill      string  `mapstructure:"fill"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./simregress-data/refs")
	v.SetDefault("storage.compression_level", 3)
	v.SetDefault("storage.cache_capacity", 64)
	v.SetDefault("storage.cache_ttl", 10*time.Minute)
	v.SetDefault("storage.journal_dir", "./simregress-data/journal")

	v.SetDefault("compare.tolerance", compare.DefaultTolerance)
	v.SetDefault("compare.metric", metrics.NameNormInftyDist)
	v.SetDefault("compare.p", 2.0)
	v.SetDefault("compare.unify", true)
	v.SetDefault("compare.fill", string(unify.ForwardFill))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	cfg, err := LoadWithViper(newViper())
	if err != nil {
		panic(fmt.Sprintf("invalid configuration defaults: %v", err))
	}
	return cfg
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Storage.CacheCapacity < 0 {
		return fmt.Errorf("cache capacity must not be negative")
	}

	if math.IsNaN(c.Compare.Tolerance) || c.Compare.Tolerance <= 0 {
		return fmt.Errorf("compare tolerance must be positive")
	}

	if _, err := c.ToCompareOptions(); err != nil {
		return err
	}

	return nil
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
		CacheCapacity:    c.Storage.CacheCapacity,
		CacheTTL:         c.Storage.CacheTTL,
	}
}

// ToCompareOptions converts to compare.Options
func (c *Config) ToCompareOptions() (compare.Options, error) {
	metric, err := metrics.Lookup(c.Compare.Metric, c.Compare.P)
	if err != nil {
		return compare.Options{}, err
	}

	fill, err := unify.ParseFillPolicy(c.Compare.Fill)
	if err != nil {
		return compare.Options{}, err
	}

	opts := compare.DefaultOptions()
	opts.Tolerance = c.Compare.Tolerance
	opts.Metric = metric
	opts.Unify = c.Compare.Unify
	opts.Fill = fill
	return opts, nil
}
