package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/next-trace/scg-saas-dispatch/ratelimit"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	AuthEnabled      bool          `mapstructure:"auth_enabled"`
	AuthPathPrefixes []string      `mapstructure:"auth_path_prefixes"`
	Auth             BucketConfig  `mapstructure:"auth"`
	Business         BucketConfig  `mapstructure:"business"`
	IdleTTL          time.Duration `mapstructure:"idle_ttl"`
	CleanupEvery     time.Duration `mapstructure:"cleanup_every"`
}

type BucketConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	RefillTokens int           `mapstructure:"refill_tokens"`
	RefillPeriod time.Duration `mapstructure:"refill_period"`
}

type StatsConfig struct {
	// Backend is "none", "memory" or "redis".
	Backend          string      `mapstructure:"backend"`
	TrackIdentifiers bool        `mapstructure:"track_identifiers"`
	Redis            RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AlertsConfig struct {
	// Backend is "none", "log", "nats", "kafka" or "rabbitmq".
	Backend string `mapstructure:"backend"`
	Topic   string `mapstructure:"topic"`
	// Timeout bounds one broker publish; MaxInFlight caps concurrent publishes.
	Timeout     time.Duration  `mapstructure:"timeout"`
	MaxInFlight int            `mapstructure:"max_in_flight"`
	NATS        NATSConfig     `mapstructure:"nats"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ    RabbitMQConfig `mapstructure:"rabbitmq"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	ClientID    string   `mapstructure:"client_id"`
	Acks        string   `mapstructure:"acks"`
	Compression string   `mapstructure:"compression"`
}

type AccountsConfig struct {
	PasswordCost int `mapstructure:"password_cost"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Load reads path (YAML, TOML or JSON by extension) and applies SAAS_* environment overrides,
// e.g. SAAS_RATELIMIT_AUTH_ENABLED=false. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("saas")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ratelimit.auth_enabled", true)
	v.SetDefault("ratelimit.auth_path_prefixes", []string{"/api/auth/"})
	v.SetDefault("ratelimit.auth.capacity", 5)
	v.SetDefault("ratelimit.auth.refill_tokens", 5)
	v.SetDefault("ratelimit.auth.refill_period", time.Minute)
	v.SetDefault("ratelimit.business.capacity", 100)
	v.SetDefault("ratelimit.business.refill_tokens", 100)
	v.SetDefault("ratelimit.business.refill_period", time.Minute)
	v.SetDefault("ratelimit.idle_ttl", 15*time.Minute)
	v.SetDefault("ratelimit.cleanup_every", 2*time.Minute)

	v.SetDefault("stats.backend", "memory")
	v.SetDefault("stats.track_identifiers", false)
	v.SetDefault("stats.redis.addr", "127.0.0.1:6379")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.prefix", "ratelimit:stats")
	v.SetDefault("stats.redis.ttl", 24*time.Hour)

	v.SetDefault("alerts.backend", "log")
	v.SetDefault("alerts.topic", ratelimit.AlertTopic)
	v.SetDefault("alerts.timeout", ratelimit.DefaultAlertTimeout)
	v.SetDefault("alerts.max_in_flight", ratelimit.DefaultAlertMaxInFlight)
	v.SetDefault("alerts.nats.url", "")
	v.SetDefault("alerts.nats.subject_prefix", "")
	v.SetDefault("alerts.kafka.brokers", []string{})
	v.SetDefault("alerts.kafka.client_id", "saasd")
	v.SetDefault("alerts.kafka.acks", "all")
	v.SetDefault("alerts.kafka.compression", "")
	v.SetDefault("alerts.rabbitmq.url", "")
	v.SetDefault("alerts.rabbitmq.exchange", "saas.integration")

	v.SetDefault("accounts.password_cost", bcrypt.DefaultCost)
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if err := c.Strategies().Validate(); err != nil {
		return fmt.Errorf("ratelimit: %w", err)
	}

	if c.Accounts.PasswordCost < bcrypt.MinCost || c.Accounts.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("accounts.password_cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}

	switch c.Stats.Backend {
	case "none", "memory":
	case "redis":
		if c.Stats.Redis.Addr == "" {
			return fmt.Errorf("stats.redis.addr is required when stats.backend=redis")
		}
	default:
		return fmt.Errorf("unknown stats.backend %q", c.Stats.Backend)
	}

	if c.Alerts.Timeout <= 0 || c.Alerts.MaxInFlight <= 0 {
		return fmt.Errorf("alerts.timeout and alerts.max_in_flight must be positive")
	}

	switch c.Alerts.Backend {
	case "none", "log":
	case "nats":
		if c.Alerts.NATS.URL == "" {
			return fmt.Errorf("alerts.nats.url is required when alerts.backend=nats")
		}
	case "kafka":
		if len(c.Alerts.Kafka.Brokers) == 0 {
			return fmt.Errorf("alerts.kafka.brokers is required when alerts.backend=kafka")
		}
	case "rabbitmq":
		if c.Alerts.RabbitMQ.URL == "" {
			return fmt.Errorf("alerts.rabbitmq.url is required when alerts.backend=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown alerts.backend %q", c.Alerts.Backend)
	}

	return nil
}

// Strategies converts the bucket sections to limiter strategies.
func (c Config) Strategies() ratelimit.Strategies {
	return ratelimit.Strategies{
		ratelimit.StrategyAuth:     c.RateLimit.Auth.bucket(),
		ratelimit.StrategyBusiness: c.RateLimit.Business.bucket(),
	}
}

func (b BucketConfig) bucket() ratelimit.BucketConfig {
	return ratelimit.BucketConfig{Capacity: b.Capacity, RefillTokens: b.RefillTokens, RefillPeriod: b.RefillPeriod}
}

// SlogLevel parses log.level.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}

	return l, nil
}
