package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Email   EmailConfig   `mapstructure:"email"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Logging LoggingConfig `mapstructure:"logging"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Breaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	APIKey  string        `mapstructure:"api_key"`
}

// JobsConfig holds background job processing settings: the worker pool that
// runs the two cron-driven sweeps (SLA-breach scan, outbox drain), and the
// workflow-lock timings.
type JobsConfig struct {
	WorkerPoolSize     int           `mapstructure:"worker_pool_size"`
	WorkerQueueSize    int           `mapstructure:"worker_queue_size"`
	SLAScanSchedule    string        `mapstructure:"sla_scan_schedule"`
	OutboxDrainSchedule string       `mapstructure:"outbox_drain_schedule"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval  time.Duration `mapstructure:"lock_retry_interval"`
}

// CircuitBreakerConfig tunes the per-channel breaker wrapping event-sink
// delivery (internal/events/breaker.go).
type CircuitBreakerConfig struct {
	ConsecutiveFailureThreshold uint32        `mapstructure:"consecutive_failure_threshold"`
	OpenTimeout                 time.Duration `mapstructure:"open_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds the engine's one database connection.
type DatabaseConfig struct {
	Core PostgresConfig `mapstructure:"core"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// JWTConfig holds JWT actor-identity settings (§6: the engine extracts the
// acting user id from an already-authenticated bearer token; it is not an
// identity provider itself).
type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// EmailConfig holds SMTP settings for the notification sink
// (internal/events/email.go).
type EmailConfig struct {
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUsername   string `mapstructure:"smtp_username"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	SenderAddress  string `mapstructure:"sender_address"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	AllowAll       bool     `mapstructure:"allow_all"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FilePath       string `mapstructure:"file_path"`
	MaxSizeMB      int    `mapstructure:"max_size_mb"`
	MaxBackups     int    `mapstructure:"max_backups"`
	MaxAgeDays     int    `mapstructure:"max_age_days"`
	Compress       bool   `mapstructure:"compress"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
}

// RedisConfig holds Redis connection settings, backing the distributed
// workflow-instance lock (internal/lock/redislock.go).
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads the configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bte-engine")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	env := v.GetString("APP_ENV")
	if env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", strings.ToLower(env)))
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading env config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.core.host", "localhost")
	v.SetDefault("database.core.port", 5432)
	v.SetDefault("database.core.database", "bte_engine")
	v.SetDefault("database.core.username", "postgres")
	v.SetDefault("database.core.password", "postgres")
	v.SetDefault("database.core.ssl_mode", "disable")
	v.SetDefault("database.core.max_open_conns", 25)
	v.SetDefault("database.core.max_idle_conns", 10)
	v.SetDefault("database.core.conn_max_lifetime", "5m")

	v.SetDefault("jwt.issuer", "https://bte-engine.local")
	v.SetDefault("jwt.audience", "bte-engine")

	v.SetDefault("email.smtp_port", 25)

	v.SetDefault("cors.allow_all", true)
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"})
	v.SetDefault("cors.allowed_headers", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file_path", "logs/bte-engine.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 10)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console_enabled", true)
	v.SetDefault("logging.file_enabled", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("jobs.worker_pool_size", 5)
	v.SetDefault("jobs.worker_queue_size", 100)
	v.SetDefault("jobs.sla_scan_schedule", "@every 5m")
	v.SetDefault("jobs.outbox_drain_schedule", "@every 10s")
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.lock_ttl", "30s")
	v.SetDefault("jobs.lock_retry_interval", "100ms")

	v.SetDefault("circuit_breaker.consecutive_failure_threshold", 5)
	v.SetDefault("circuit_breaker.open_timeout", "30s")
}
