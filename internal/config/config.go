// Package config loads tombstone settings from YAML, environment and flags.
//
// Environment variables use the TOMBSTONE_ prefix with dots replaced by
// underscores, e.g. TOMBSTONE_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

const envPrefix = "TOMBSTONE"

var validate = validator.New()

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Audit    AuditConfig    `mapstructure:"audit"`

	// Schema declares the record types managed by the engine.
	Schema []metadata.TypeDef `mapstructure:"schema"`
}

type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver" validate:"required,oneof=postgres sqlite mysql"`
	DSN              string        `mapstructure:"dsn" validate:"required"`
	MaxConns         int           `mapstructure:"max_conns" validate:"gte=0"`
	MinConns         int           `mapstructure:"min_conns" validate:"gte=0"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// OutboxConfig applies to the postgres driver only.
type OutboxConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BatchSize    int           `mapstructure:"batch_size" validate:"gte=1,lte=1000"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	// Webhook receives each event as a JSON POST. Empty logs events instead.
	Webhook string `mapstructure:"webhook" validate:"omitempty,url"`
}

// AuditConfig applies to the postgres driver only.
type AuditConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	CompressThreshold int  `mapstructure:"compress_threshold" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tombstone.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("outbox.enabled", false)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.webhook", "")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.compress_threshold", 4096)
}

// New returns a viper instance with defaults and environment binding.
// cmd/tombstone binds its flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or tombstone.yaml from the working directory and
// /etc/tombstone when path is empty) into a validated Config.
// A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tombstone")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tombstone")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Registry registers the declared schema and finalizes it.
func (c *Config) Registry() (*metadata.Registry, error) {
	reg := metadata.NewRegistry()
	for _, def := range c.Schema {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	if err := reg.Finalize(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return reg, nil
}

// Logger converts the log section.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:       c.Level,
		Development: c.Development,
		File:        c.File,
		MaxSizeMB:   c.MaxSizeMB,
		MaxBackups:  c.MaxBackups,
		MaxAgeDays:  c.MaxAgeDays,
	}
}
