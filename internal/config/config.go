// Package config defines all configuration for the price tracker.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via KEEPER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	EventLog  EventLogConfig  `mapstructure:"event_log"`
	Search    SearchConfig    `mapstructure:"search"`
	Deals     DealsConfig     `mapstructure:"deals"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds credentials and endpoint for the external price API.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// DatabaseConfig holds the relational store connection string.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EventLogConfig holds the Kafka bootstrap brokers and topic names.
type EventLogConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	PriceTopic    string   `mapstructure:"price_topic"`
	DealTopic     string   `mapstructure:"deal_topic"`
	RetentionHrs  int      `mapstructure:"retention_hours"`
}

// SearchConfig holds the Elasticsearch endpoint and index names.
type SearchConfig struct {
	URL        string `mapstructure:"url"`
	PriceIndex string `mapstructure:"price_index"`
	DealIndex  string `mapstructure:"deal_index"`
}

// DealsConfig controls the deal-ingestion pipeline (C7).
//
//   - SourceMode: "product_only" forces product-query fallback, never calling
//     the deal-search endpoint; "deals" enables it.
//   - SeedFile: newline-separated product codes, hot-reloaded by mtime.
//   - SeedCodes: inline comma-separated list, used when SeedFile is unset,
//     missing, or empty.
//   - ScanInterval: time between pipeline iterations.
//   - BatchSize: product codes processed per batch.
//   - ParallelQueries: semaphore bound on concurrent per-domain queries.
type DealsConfig struct {
	// TargetsConfigFile, when set, takes priority over every other seed
	// source — an operator-maintained list distinct from the default seed
	// file, reserved for explicit per-deployment overrides.
	TargetsConfigFile string        `mapstructure:"targets_config_file"`
	SourceMode        string        `mapstructure:"source_mode"`
	SeedFile          string        `mapstructure:"seed_file"`
	SeedCodes         string        `mapstructure:"seed_codes"`
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	ParallelQueries   int           `mapstructure:"parallel_queries"`
}

// SchedulerConfig drives the main loop cadence.
//
//   - CheckInterval: period between price-check cycles.
//   - DailyReportEveryNCycles: how many price-check cycles between daily
//     deal-report runs (default 4, paired with the default 6h check interval
//     this yields once per 24h).
//   - ParallelPriceFetch: semaphore bound on concurrent price fetches.
//   - ShutdownDeadline: grace period for cooperative cancellation.
type SchedulerConfig struct {
	CheckInterval           time.Duration `mapstructure:"check_interval"`
	DailyReportEveryNCycles int           `mapstructure:"daily_report_every_n_cycles"`
	ParallelPriceFetch      int           `mapstructure:"parallel_price_fetch"`
	ShutdownDeadline        time.Duration `mapstructure:"shutdown_deadline"`
}

// RateLimitConfig tunes the token bucket guarding outbound API calls.
type RateLimitConfig struct {
	TokensPerMinute int           `mapstructure:"tokens_per_minute"`
	TokensCapacity  int           `mapstructure:"tokens_capacity"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// AlertsConfig tunes the dispatch engine (C9).
type AlertsConfig struct {
	DedupWindow      time.Duration `mapstructure:"dedup_window"`
	PerUserHourlyCap int           `mapstructure:"per_user_hourly_cap"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: KEEPER_API_KEY, KEEPER_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("KEEPER_API_KEY"); key != "" {
		cfg.API.APIKey = key
	}
	if dbURL := os.Getenv("KEEPER_DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deals.source_mode", "product_only")
	v.SetDefault("deals.seed_file", "data/seed_asins_eu_qwertz.txt")
	v.SetDefault("deals.seed_codes", "")
	v.SetDefault("deals.scan_interval", 3600*time.Second)
	v.SetDefault("deals.batch_size", 10)
	v.SetDefault("deals.parallel_queries", 5)

	v.SetDefault("scheduler.check_interval", 21600*time.Second)
	v.SetDefault("scheduler.daily_report_every_n_cycles", 4)
	v.SetDefault("scheduler.parallel_price_fetch", 5)
	v.SetDefault("scheduler.shutdown_deadline", 30*time.Second)

	v.SetDefault("rate_limit.tokens_per_minute", 20)
	v.SetDefault("rate_limit.tokens_capacity", 200)
	v.SetDefault("rate_limit.max_wait", 120*time.Second)
	v.SetDefault("rate_limit.poll_interval", 500*time.Millisecond)

	v.SetDefault("alerts.dedup_window", 3600*time.Second)
	v.SetDefault("alerts.per_user_hourly_cap", 10)

	v.SetDefault("event_log.price_topic", "price-updates")
	v.SetDefault("event_log.deal_topic", "deal-updates")
	v.SetDefault("event_log.retention_hours", 168)

	v.SetDefault("search.price_index", "keeper-prices")
	v.SetDefault("search.deal_index", "keeper-deals")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required (set KEEPER_API_KEY)")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set KEEPER_DATABASE_URL)")
	}
	if len(c.EventLog.Brokers) == 0 {
		return fmt.Errorf("event_log.brokers is required")
	}
	if c.Search.URL == "" {
		return fmt.Errorf("search.url is required")
	}
	switch c.Deals.SourceMode {
	case "product_only", "deals":
	default:
		return fmt.Errorf("deals.source_mode must be one of: product_only, deals")
	}
	if c.Deals.BatchSize <= 0 {
		return fmt.Errorf("deals.batch_size must be > 0")
	}
	if c.Scheduler.ParallelPriceFetch <= 0 {
		return fmt.Errorf("scheduler.parallel_price_fetch must be > 0")
	}
	if c.RateLimit.TokensCapacity <= 0 {
		return fmt.Errorf("rate_limit.tokens_capacity must be > 0")
	}
	return nil
}
