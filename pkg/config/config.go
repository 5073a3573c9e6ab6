package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"AgriPull/internal/domain/models"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Markets        []string      `yaml:"markets"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Weather struct {
		APIKey        string        `yaml:"api_key"`
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout"`
		SyncInterval  time.Duration `yaml:"sync_interval"`
		RetentionDays int           `yaml:"retention_days"`
	} `yaml:"weather"`
	Estimator struct {
		Alpha           float64 `yaml:"alpha"`
		SeasonK         float64 `yaml:"season_k"`
		ShockK          float64 `yaml:"shock_k"`
		WeatherK        float64 `yaml:"weather_k"`
		DefaultDistance float64 `yaml:"default_distance"`
	} `yaml:"estimator"`
	Calibration struct {
		Locations  []string      `yaml:"locations"`
		Markets    []string      `yaml:"markets"`
		WindowDays int           `yaml:"window_days"`
		MinSamples int           `yaml:"min_samples"`
		Interval   time.Duration `yaml:"interval"`
	} `yaml:"calibration"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		TTL struct {
			Estimate time.Duration `yaml:"estimate"`
			Weather  time.Duration `yaml:"weather"`
			Sigma    time.Duration `yaml:"sigma"`
		} `yaml:"ttl"`
	} `yaml:"cache"`
	Markets []models.Market `yaml:"markets"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("WEATHER_API_KEY"); v != "" {
		c.Weather.APIKey = v
	}
	if v := os.Getenv("MARKETS"); v != "" {
		c.Feed.Markets = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Estimator.Alpha == 0 {
		c.Estimator.Alpha = 0.4
	}
	if c.Estimator.SeasonK == 0 {
		c.Estimator.SeasonK = 0.12
	}
	if c.Estimator.ShockK == 0 {
		c.Estimator.ShockK = 0.08
	}
	if c.Estimator.WeatherK == 0 {
		c.Estimator.WeatherK = 0.12
	}
	if c.Estimator.DefaultDistance == 0 {
		c.Estimator.DefaultDistance = 100.0
	}
	if c.Calibration.WindowDays == 0 {
		c.Calibration.WindowDays = 30
	}
	if c.Calibration.MinSamples == 0 {
		c.Calibration.MinSamples = 10
	}
	if c.Calibration.Interval == 0 {
		c.Calibration.Interval = 24 * time.Hour
	}
	if c.Weather.SyncInterval == 0 {
		c.Weather.SyncInterval = 2 * time.Hour
	}
	if c.Weather.RetentionDays == 0 {
		c.Weather.RetentionDays = 90
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 10 * time.Second
	}
	if c.Cache.TTL.Estimate == 0 {
		c.Cache.TTL.Estimate = 5 * time.Minute
	}
	if c.Cache.TTL.Weather == 0 {
		c.Cache.TTL.Weather = 2 * time.Hour
	}
	if c.Cache.TTL.Sigma == 0 {
		c.Cache.TTL.Sigma = 24 * time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("markets cannot be empty")
	}
	if len(c.Calibration.Locations) == 0 {
		return fmt.Errorf("calibration.locations cannot be empty")
	}
	if len(c.Calibration.Markets) == 0 {
		return fmt.Errorf("calibration.markets cannot be empty")
	}
	return nil
}
