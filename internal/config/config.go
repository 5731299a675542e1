// Package config handles configuration loading for MarketLens.
// It supports YAML config files, .env files and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKETLENS"

// Config represents the complete application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Resolver  ResolverConfig  `mapstructure:"resolver"  yaml:"resolver"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         validate:"min=1,max=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// StorageConfig selects the article database.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite sqlite3 postgres postgresql pgx"`
	DSN    string `mapstructure:"dsn"    yaml:"dsn"    validate:"required"`
}

// RedisConfig enables the shared verification cache when URL is set.
type RedisConfig struct {
	URL    string `mapstructure:"url"    yaml:"url"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// ResolverConfig holds ticker search settings.
type ResolverConfig struct {
	CatalogPath      string  `mapstructure:"catalog_path"       yaml:"catalog_path"`
	YahooURL         string  `mapstructure:"yahoo_url"          yaml:"yahoo_url"          validate:"omitempty,url"`
	VerifyTimeoutSec int     `mapstructure:"verify_timeout_sec" yaml:"verify_timeout_sec" validate:"min=1"`
	CacheTTLSec      int     `mapstructure:"cache_ttl_sec"      yaml:"cache_ttl_sec"      validate:"min=0"`
	RatePerSec       float64 `mapstructure:"rate_per_sec"       yaml:"rate_per_sec"       validate:"min=0"`
}

// NewsConfig holds news provider and pipeline settings.
type NewsConfig struct {
	Provider     string        `mapstructure:"provider"      yaml:"provider"      validate:"oneof=rss apify serpapi"`
	DefaultLimit int           `mapstructure:"default_limit" yaml:"default_limit" validate:"min=1"`
	TimeoutSec   int           `mapstructure:"timeout_sec"   yaml:"timeout_sec"   validate:"min=1"`
	Workers      int           `mapstructure:"workers"       yaml:"workers"       validate:"min=1,max=64"`
	RatePerSec   float64       `mapstructure:"rate_per_sec"  yaml:"rate_per_sec"  validate:"min=0"`
	RSS          RSSConfig     `mapstructure:"rss"           yaml:"rss"`
	Apify        ApifyConfig   `mapstructure:"apify"         yaml:"apify"`
	SerpAPI      SerpAPIConfig `mapstructure:"serpapi"       yaml:"serpapi"`
}

// RSSConfig points at a per-symbol headline feed.
type RSSConfig struct {
	FeedURL string `mapstructure:"feed_url" yaml:"feed_url"`
}

// ApifyConfig holds Apify actor credentials.
type ApifyConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"token"    yaml:"token"`
	Actor   string `mapstructure:"actor"    yaml:"actor"`
}

// SerpAPIConfig holds SerpApi credentials.
type SerpAPIConfig struct {
	Key string `mapstructure:"key" yaml:"key"`
}

// SentimentConfig selects the sentiment classifier.
type SentimentConfig struct {
	Classifier   string `mapstructure:"classifier"    yaml:"classifier"    validate:"oneof=keyword anthropic"`
	AnthropicKey string `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	Model        string `mapstructure:"model"         yaml:"model"`
}

// SchedulerConfig drives periodic ingestion of a watchlist.
type SchedulerConfig struct {
	Enabled   bool     `mapstructure:"enabled"   yaml:"enabled"`
	Cron      string   `mapstructure:"cron"      yaml:"cron"      validate:"required_if=Enabled true"`
	Watchlist []string `mapstructure:"watchlist" yaml:"watchlist"`
	Limit     int      `mapstructure:"limit"     yaml:"limit"     validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// VerifyTimeout returns the resolver's per-lookup timeout.
func (c ResolverConfig) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSec) * time.Second
}

// CacheTTL returns how long verification results are cached.
func (c ResolverConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// Timeout returns the news provider timeout.
func (c NewsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketlens/config.yaml (home directory)
//  3. /etc/marketlens/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never replaces
// variables that are already set. Environment variables override config
// file values. Format: MARKETLENS_<SECTION>_<KEY>, e.g. MARKETLENS_NEWS_WORKERS.
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketlens"))
	v.AddConfigPath("/etc/marketlens")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", filepath.Join(homeDir(), ".marketlens", "news.db"))

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "marketlens:")

	v.SetDefault("resolver.catalog_path", "")
	v.SetDefault("resolver.yahoo_url", "https://query1.finance.yahoo.com")
	v.SetDefault("resolver.verify_timeout_sec", 5)
	v.SetDefault("resolver.cache_ttl_sec", 3600) // 1 hour
	v.SetDefault("resolver.rate_per_sec", 5.0)

	v.SetDefault("news.provider", "rss")
	v.SetDefault("news.default_limit", 10)
	v.SetDefault("news.timeout_sec", 30)
	v.SetDefault("news.workers", 1)
	v.SetDefault("news.rate_per_sec", 2.0)
	v.SetDefault("news.rss.feed_url", "")
	v.SetDefault("news.apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("news.apify.token", "")
	v.SetDefault("news.apify.actor", "")
	v.SetDefault("news.serpapi.key", "")

	v.SetDefault("sentiment.classifier", "keyword")
	v.SetDefault("sentiment.anthropic_key", "")
	v.SetDefault("sentiment.model", "")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "*/30 * * * *") // every 30 minutes
	v.SetDefault("scheduler.watchlist", []string{})
	v.SetDefault("scheduler.limit", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads secrets from their conventional
// environment variables when the prefixed ones are unset.
func overrideFromEnv(cfg *Config) {
	if cfg.Sentiment.AnthropicKey == "" {
		cfg.Sentiment.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.News.Apify.Token == "" {
		cfg.News.Apify.Token = os.Getenv("APIFY_API_TOKEN")
	}
	if cfg.News.SerpAPI.Key == "" {
		cfg.News.SerpAPI.Key = os.Getenv("SERPAPI_API_KEY")
	}
}

// Validate checks field constraints and cross-field requirements such as
// the credential needed by the selected provider.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Scheduler.Enabled && len(c.Scheduler.Watchlist) == 0 {
		return errors.New("invalid config: scheduler.watchlist is required when the scheduler is enabled")
	}
	switch c.News.Provider {
	case "apify":
		if c.News.Apify.Token == "" || c.News.Apify.Actor == "" {
			return errors.New("invalid config: news.apify.token and news.apify.actor are required for the apify provider")
		}
	case "serpapi":
		if c.News.SerpAPI.Key == "" {
			return errors.New("invalid config: news.serpapi.key is required for the serpapi provider")
		}
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
