package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RunTimeout      time.Duration `yaml:"run_timeout" default:"2m"`
		RatePerMinute   int           `yaml:"rate_per_minute" default:"30" validate:"min=1"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Data struct {
		Source    string `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
		CSVPath   string `yaml:"csv_path"`
		Symbol    string `yaml:"symbol" default:"BTCUSDT" validate:"required"`
		Timeframe string `yaml:"timeframe" default:"1m" validate:"oneof=1m 5m 15m 1h 1d"`
		From      string `yaml:"from"`
		To        string `yaml:"to"`
		// LookbackDays of history before From used for levels and trend warmup.
		LookbackDays int `yaml:"lookback_days" default:"3" validate:"min=1"`
	} `yaml:"data"`
	Profile struct {
		Bins            int     `yaml:"bins" default:"140" validate:"min=2"`
		Mode            string  `yaml:"mode" default:"close" validate:"oneof=close distributed"`
		ReferenceBars   int     `yaml:"reference_bars" default:"200" validate:"min=1"`
		PeaksPerSession int     `yaml:"peaks_per_session" default:"3" validate:"min=1"`
		SessionTimezone string  `yaml:"session_timezone" default:"UTC"`
		ZoneCutoff      float64 `yaml:"zone_cutoff" default:"0.6" validate:"gt=0,lte=1"`
		ZoneTolerance   float64 `yaml:"zone_tolerance" default:"0.002" validate:"gte=0"`
		MergeRelative   float64 `yaml:"merge_relative" default:"0.0005" validate:"gte=0"`
		MergeAbsolute   float64 `yaml:"merge_absolute" default:"0.5" validate:"gte=0"`
	} `yaml:"profile"`
	Trend struct {
		Short         int     `yaml:"short" default:"20" validate:"min=1"`
		Mid           int     `yaml:"mid" default:"50" validate:"min=1"`
		FlatThreshold float64 `yaml:"flat_threshold" default:"0.002" validate:"gte=0"`
	} `yaml:"trend"`
	Strategy struct {
		EntryTolerance     float64 `yaml:"entry_tolerance" default:"0.0015" validate:"gte=0"`
		SentimentThreshold float64 `yaml:"sentiment_threshold" default:"0.05" validate:"gte=0,lte=1"`
		Notional           float64 `yaml:"notional" default:"10" validate:"gt=0"`
		FeeRate            float64 `yaml:"fee_rate" default:"0.0006" validate:"gte=0,lt=1"`
		StopFloor          float64 `yaml:"stop_floor" default:"0.5" validate:"gte=0"`
		StopFraction       float64 `yaml:"stop_fraction" default:"0.005" validate:"gte=0"`
		FallbackTarget     float64 `yaml:"fallback_target" default:"0.01" validate:"gt=0"`
		Selection          string  `yaml:"selection" default:"first" validate:"oneof=first nearest"`
		EndOfRun           string  `yaml:"end_of_run" default:"leave_open" validate:"oneof=leave_open close_at_last"`
	} `yaml:"strategy"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"levelscope"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled        bool          `yaml:"enabled"`
		Brokers        []string      `yaml:"brokers"`
		TradesTopic    string        `yaml:"trades_topic" default:"backtest.trades"`
		SentimentTopic string        `yaml:"sentiment_topic" default:"sentiment.scores"`
		GroupID        string        `yaml:"group_id" default:"levelscope"`
		Workers        int           `yaml:"workers" default:"2" validate:"min=1"`
		RetryMax       int           `yaml:"retry_max" default:"3" validate:"min=0"`
		BackoffMin     time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic       string        `yaml:"dlq_topic"`
		WriteTimeout   time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Cache struct {
		Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL           time.Duration `yaml:"ttl" default:"30m"`
		RedisAddr     string        `yaml:"redis_addr" default:"localhost:6379"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		KeyPrefix     string        `yaml:"key_prefix" default:"levelscope"`
	} `yaml:"cache"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults for unset fields and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LEVELSCOPE_SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Trend.Short >= c.Trend.Mid {
		return fmt.Errorf("trend.short (%d) must be less than trend.mid (%d)", c.Trend.Short, c.Trend.Mid)
	}
	if c.Data.Source == "csv" && c.Data.CSVPath == "" {
		return fmt.Errorf("data.csv_path is required when data.source is csv")
	}
	if c.Data.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.enabled must be true when data.source is clickhouse")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if _, err := time.LoadLocation(c.Profile.SessionTimezone); err != nil {
		return fmt.Errorf("profile.session_timezone: %w", err)
	}
	return nil
}

// SessionLocation returns the timezone sessions are split in.
func (c *Config) SessionLocation() *time.Location {
	loc, err := time.LoadLocation(c.Profile.SessionTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
