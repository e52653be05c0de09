package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	RequestTimeout int `mapstructure:"request_timeout"`
	// Requests per minute per client IP.
	RateLimit   int    `mapstructure:"rate_limit"`
	OpenAPIPath string `mapstructure:"openapi_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// RoutingConfig configures the Google Directions route provider.
type RoutingConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	CacheTTL       int     `mapstructure:"cache_ttl"`
}

// OptimizerConfig holds the fuel-stop heuristic parameters.
type OptimizerConfig struct {
	MaxRangeMiles          float64 `mapstructure:"max_range_miles"`
	MilesPerGallon         float64 `mapstructure:"miles_per_gallon"`
	TriggerFraction        float64 `mapstructure:"trigger_fraction"`
	SearchHalfWidthDegrees float64 `mapstructure:"search_half_width_degrees"`
	CandidateLimit         int     `mapstructure:"candidate_limit"`
	ScorePriceWeight       float64 `mapstructure:"score_price_weight"`
	ScoreDeviationWeight   float64 `mapstructure:"score_deviation_weight"`
	UpstreamTimeoutSeconds int     `mapstructure:"upstream_timeout_seconds"`
}

// UpstreamTimeout is the budget for one whole plan computation.
func (o OptimizerConfig) UpstreamTimeout() time.Duration {
	return time.Duration(o.UpstreamTimeoutSeconds) * time.Second
}

// CatalogueConfig selects where stations are read from.
type CatalogueConfig struct {
	Source   string `mapstructure:"source"` // "postgres" or "csv"
	CSVPath  string `mapstructure:"csv_path"`
	CacheTTL int    `mapstructure:"cache_ttl"`
	// RefreshSchedule is a cron spec for the worker's scheduled refresh.
	// Empty disables scheduling.
	RefreshSchedule string `mapstructure:"refresh_schedule"`
	// RefreshPath is the export the scheduled refresh imports.
	RefreshPath string `mapstructure:"refresh_path"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FUELROUTE_ROUTING_API_KEY → routing.api_key
	v.SetEnvPrefix("FUELROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.request_timeout", 30)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.openapi_path", "api/openapi.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fuelroute")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fuelroute")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("routing.api_key", "")
	v.SetDefault("routing.base_url", "https://maps.googleapis.com")
	v.SetDefault("routing.rate_per_second", 10.0)
	v.SetDefault("routing.burst", 10)
	v.SetDefault("routing.timeout_seconds", 10)
	v.SetDefault("routing.cache_ttl", 3600)
	v.SetDefault("optimizer.max_range_miles", 500.0)
	v.SetDefault("optimizer.miles_per_gallon", 10.0)
	v.SetDefault("optimizer.trigger_fraction", 0.8)
	v.SetDefault("optimizer.search_half_width_degrees", 0.5)
	v.SetDefault("optimizer.candidate_limit", 10)
	v.SetDefault("optimizer.score_price_weight", 0.7)
	v.SetDefault("optimizer.score_deviation_weight", 0.3)
	v.SetDefault("optimizer.upstream_timeout_seconds", 20)
	v.SetDefault("catalogue.source", "postgres")
	v.SetDefault("catalogue.csv_path", "data/fuel-prices.csv")
	v.SetDefault("catalogue.cache_ttl", 300)
	v.SetDefault("catalogue.refresh_schedule", "0 6 * * *")
	v.SetDefault("catalogue.refresh_path", "data/fuel-prices.csv")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "catalogue-refresh")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}

	switch c.Catalogue.Source {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "csv":
		if c.Catalogue.CSVPath == "" {
			errs = append(errs, "catalogue.csv_path is required when catalogue.source is csv")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalogue.source must be postgres or csv, got %q", c.Catalogue.Source))
	}

	if c.Catalogue.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Catalogue.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("catalogue.refresh_schedule: %v", err))
		}
	}

	if c.Routing.BaseURL == "" {
		errs = append(errs, "routing.base_url is required")
	}
	if c.Routing.TimeoutSeconds <= 0 {
		errs = append(errs, "routing.timeout_seconds must be positive")
	}

	o := c.Optimizer
	if o.MaxRangeMiles <= 0 {
		errs = append(errs, "optimizer.max_range_miles must be positive")
	}
	if o.MilesPerGallon <= 0 {
		errs = append(errs, "optimizer.miles_per_gallon must be positive")
	}
	if o.TriggerFraction <= 0 || o.TriggerFraction > 1 {
		errs = append(errs, fmt.Sprintf("optimizer.trigger_fraction must be in (0, 1], got %v", o.TriggerFraction))
	}
	if o.SearchHalfWidthDegrees <= 0 {
		errs = append(errs, "optimizer.search_half_width_degrees must be positive")
	}
	if o.CandidateLimit <= 0 {
		errs = append(errs, "optimizer.candidate_limit must be positive")
	}
	if o.ScorePriceWeight < 0 || o.ScoreDeviationWeight < 0 {
		errs = append(errs, "optimizer score weights must not be negative")
	}
	if o.UpstreamTimeoutSeconds <= 0 {
		errs = append(errs, "optimizer.upstream_timeout_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
