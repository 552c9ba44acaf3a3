package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Companion CompanionConfig `mapstructure:"companion"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL             string `mapstructure:"url"`
	InboxSubject    string `mapstructure:"inbox_subject"`
	OutboxSubject   string `mapstructure:"outbox_subject"`
	LocationSubject string `mapstructure:"location_subject"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects where the station table is flushed on shutdown.
type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // memory, valkey or postgres
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type WatchConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type CompanionConfig struct {
	FeedURL      string        `mapstructure:"feed_url"`
	CenterLat    float64       `mapstructure:"center_lat"`
	CenterLon    float64       `mapstructure:"center_lon"`
	MaxRadius    float64       `mapstructure:"max_radius"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	MaxRetry     int           `mapstructure:"max_retry"`
	AckDelay     time.Duration `mapstructure:"ack_delay"`
	NackDelay    time.Duration `mapstructure:"nack_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "molbubble")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "molbubble")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.inbox_subject", "molbubble.watch.inbox")
	v.SetDefault("nats.outbox_subject", "molbubble.watch.outbox")
	v.SetDefault("nats.location_subject", "molbubble.companion.location")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("storage.driver", "valkey")
	v.SetDefault("storage.namespace", "molbubble:persist")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("watch.refresh_interval", 5*time.Second)
	v.SetDefault("companion.feed_url", "http://futar.bkk.hu/bkk-utvonaltervezo-api/ws/otp/api/where/bicycle-rental.json")
	v.SetDefault("companion.center_lat", 47.4925)
	v.SetDefault("companion.center_lon", 19.0514)
	v.SetDefault("companion.max_radius", 30000.0)
	v.SetDefault("companion.poll_interval", time.Minute)
	v.SetDefault("companion.chunk_size", 120)
	v.SetDefault("companion.max_retry", 5)
	v.SetDefault("companion.ack_delay", 0)
	v.SetDefault("companion.nack_delay", 200*time.Millisecond)
	v.SetDefault("companion.timeout", time.Second)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MOLBUBBLE_STORAGE_DRIVER → storage.driver
	v.SetEnvPrefix("MOLBUBBLE")
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
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.NATS.InboxSubject == "" || c.NATS.OutboxSubject == "" {
		errs = append(errs, "nats.inbox_subject and nats.outbox_subject are required")
	}

	switch c.Storage.Driver {
	case "memory":
	case "valkey":
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required for the valkey storage driver")
		}
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
	default:
		errs = append(errs, fmt.Sprintf("storage.driver must be memory, valkey or postgres, got %q", c.Storage.Driver))
	}
	if c.Storage.Namespace == "" {
		errs = append(errs, "storage.namespace is required")
	}

	if c.Watch.RefreshInterval < 0 {
		errs = append(errs, "watch.refresh_interval must not be negative")
	}
	if c.Companion.ChunkSize <= 0 {
		errs = append(errs, "companion.chunk_size must be positive")
	}
	if c.Companion.MaxRetry <= 0 {
		errs = append(errs, "companion.max_retry must be positive")
	}
	if c.Companion.Timeout <= 0 {
		errs = append(errs, "companion.timeout must be positive")
	}
	if c.Companion.PollInterval <= 0 {
		errs = append(errs, "companion.poll_interval must be positive")
	}
	if c.Companion.CenterLat < -90 || c.Companion.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("companion.center_lat out of range: %f", c.Companion.CenterLat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
