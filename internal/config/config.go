package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	TransportStomp = "stomp"
	TransportRedis = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for the client
type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Stomp     StompConfig     `mapstructure:"stomp"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type TransportConfig struct {
	Kind string `mapstructure:"kind"` // "stomp" or "redis"
}

type StompConfig struct {
	URL      string `mapstructure:"url"`
	Login    string `mapstructure:"login"`
	Passcode string `mapstructure:"passcode"`
	Host     string `mapstructure:"host"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Identity string `mapstructure:"identity"`
}

type ChannelsConfig struct {
	Positions       string `mapstructure:"positions"`
	Quotes          string `mapstructure:"quotes"`
	PositionUpdates string `mapstructure:"position_updates"`
	Errors          string `mapstructure:"errors"`
	Trade           string `mapstructure:"trade"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"` // empty disables the journal
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics endpoint
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from a .env file, environment variables and defaults.
func LoadConfig(logger *zap.Logger) (*Config, error) {
	v := viper.New()

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, relying on environment")
	}

	v.SetDefault("transport.kind", TransportStomp)

	v.SetDefault("stomp.url", "ws://localhost:8080/portfolio-websocket")
	v.SetDefault("stomp.login", "")
	v.SetDefault("stomp.passcode", "")
	v.SetDefault("stomp.host", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.identity", "")

	v.SetDefault("channels.positions", "/app/positions")
	v.SetDefault("channels.quotes", "/topic/price.stock.*")
	v.SetDefault("channels.position_updates", "/queue/position-updates")
	v.SetDefault("channels.errors", "/queue/errors")
	v.SetDefault("channels.trade", "/app/trade")

	v.SetDefault("database.url", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")

	// "stomp.url" -> "STOMP_URL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, logger, "transport.kind")
	bindEnv(v, logger, "stomp.url", "stomp.login", "stomp.passcode", "stomp.host")
	bindEnv(v, logger, "redis.addr", "redis.password", "redis.db", "redis.identity")
	bindEnv(v, logger, "channels.positions", "channels.quotes", "channels.position_updates", "channels.errors", "channels.trade")
	bindEnv(v, logger, "database.url", "metrics.addr", "log.level")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportStomp:
		if c.Stomp.URL == "" {
			return fmt.Errorf("%w: stomp.url is empty", ErrInvalidConfig)
		}
	case TransportRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is empty", ErrInvalidConfig)
		}
		if c.Redis.Identity == "" {
			return fmt.Errorf("%w: redis.identity is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport.kind %q", ErrInvalidConfig, c.Transport.Kind)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, logger *zap.Logger, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			logger.Warn("could not bind env var", zap.String("key", key), zap.Error(err))
		}
	}
}
