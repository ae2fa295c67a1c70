package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dispatch-cli/internal/issues"
	"github.com/sells-group/dispatch-cli/internal/pricing"
	"github.com/sells-group/dispatch-cli/internal/resilience"
	"github.com/sells-group/dispatch-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Geocode    GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
	Pricing    PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Issues     issues.Thresholds `yaml:"issues" mapstructure:"issues"`
	Monitoring MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Batch      BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend. The sqlite driver keeps
// everything in a local file; postgres is for shared deployments.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// GeocodeConfig configures the routing API client.
type GeocodeConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Profile       string  `yaml:"profile" mapstructure:"profile"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateRPS       float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// Timeout returns the per-call timeout as a duration.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// Retry returns the retry policy for API calls.
func (g GeocodeConfig) Retry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if g.RetryAttempts > 0 {
		cfg.MaxAttempts = g.RetryAttempts
	}
	return cfg
}

// PricingConfig holds the invoice rate card.
type PricingConfig struct {
	SingleFlatCost     float64 `yaml:"single_flat_cost" mapstructure:"single_flat_cost"`
	SingleFlatMaxMiles float64 `yaml:"single_flat_max_miles" mapstructure:"single_flat_max_miles"`
	PerMile            float64 `yaml:"per_mile" mapstructure:"per_mile"`
	PerExtraStop       float64 `yaml:"per_extra_stop" mapstructure:"per_extra_stop"`
}

// Rates converts the config section to a pricing rate card.
func (p PricingConfig) Rates() pricing.Rates {
	return pricing.Rates{
		SingleFlatCost:     p.SingleFlatCost,
		SingleFlatMaxMiles: p.SingleFlatMaxMiles,
		PerMile:            p.PerMile,
		PerExtraStop:       p.PerExtraStop,
	}
}

// MonitoringConfig configures ingest health checks and webhook alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	IssueRateThreshold   float64 `yaml:"issue_rate_threshold" mapstructure:"issue_rate_threshold"`
}

// BatchConfig configures distance estimation batching.
type BatchConfig struct {
	Size int `yaml:"size" mapstructure:"size"`
}

// ServerConfig configures the ingest server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given mode.
// Modes: "ingest" (one-shot pipeline runs), "serve" (long-running server).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 16 {
		problems = append(problems, "geocode.concurrency must be between 1 and 16")
	}
	if c.Geocode.TimeoutSecs <= 0 {
		problems = append(problems, "geocode.timeout_secs must be > 0")
	}

	if c.Pricing.PerMile <= 0 {
		problems = append(problems, "pricing.per_mile must be > 0")
	}
	if c.Pricing.SingleFlatCost < 0 || c.Pricing.PerExtraStop < 0 {
		problems = append(problems, "pricing rates must be >= 0")
	}

	if c.Batch.Size < 1 || c.Batch.Size > 100 {
		problems = append(problems, "batch.size must be between 1 and 100")
	}

	switch mode {
	case "ingest":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Monitoring.CheckIntervalSecs <= 0 {
			problems = append(problems, "monitoring.check_interval_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dispatch.db")
	v.SetDefault("store.pool.max_conns", 8)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.size", 10)
	v.SetDefault("geocode.base_url", "https://api.openrouteservice.org")
	v.SetDefault("geocode.profile", "driving-car")
	v.SetDefault("geocode.concurrency", 3)
	v.SetDefault("geocode.rate_rps", 8)
	v.SetDefault("geocode.timeout_secs", 5)
	v.SetDefault("geocode.retry_attempts", 3)
	v.SetDefault("pricing.single_flat_cost", 25.0)
	v.SetDefault("pricing.single_flat_max_miles", 25.0)
	v.SetDefault("pricing.per_mile", 1.10)
	v.SetDefault("pricing.per_extra_stop", 12.0)
	v.SetDefault("issues.long_route_miles", 150.0)
	v.SetDefault("issues.tight_window_mins", 30)
	v.SetDefault("issues.driver_load_max", 10)
	v.SetDefault("issues.route_stops_max", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.issue_rate_threshold", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
