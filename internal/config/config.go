// Package config loads the worker and lifecycle-manager configuration:
// database, cache, event-bus, RPC defaults, and the container runtime
// settings the operator plane needs (spec.md §4.9).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for an indexer worker process and the
// lifecycle manager that supervises it.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig holds process-level configuration.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	// IndexerName identifies which Indexer row this process drives
	// (spec.md §4.9: read from INDEXER_NAME at startup).
	IndexerName string `mapstructure:"indexer_name"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds the cache-layer connection configuration.
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	PoolSize  int           `mapstructure:"pool_size"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// KafkaConfig holds the event-publisher configuration.
type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	TransfersTopic string   `mapstructure:"transfers_topic"`
	BalancesTopic  string   `mapstructure:"balances_topic"`
}

// LifecycleConfig holds the container runtime settings the operator
// plane uses to create/restart/remove worker containers (spec.md §4.9).
type LifecycleConfig struct {
	Image         string `mapstructure:"image"`
	NetworkName   string `mapstructure:"network_name"`
	LogTailLines  int    `mapstructure:"log_tail_lines"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     int    `mapstructure:"port"`
}

// Load reads configuration from an optional config file and environment
// variables prefixed INDEXER_, the way compliance/internal/config does it
// for CSIC_.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/evm-indexer/")

	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The lifecycle manager spawns worker containers with a bare
	// INDEXER_NAME (spec.md §4.9), not the app.indexer_name-shaped
	// INDEXER_APP_INDEXER_NAME AutomaticEnv would otherwise look for.
	if err := v.BindEnv("app.indexer_name", "INDEXER_NAME"); err != nil {
		return nil, fmt.Errorf("failed to bind INDEXER_NAME: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "evm-indexer")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8090)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "indexer_user")
	v.SetDefault("database.password", "indexer_password")
	v.SetDefault("database.name", "evm_indexer")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "evm-indexer:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.transfers_topic", "evm-indexer.transfers")
	v.SetDefault("kafka.balances_topic", "evm-indexer.balances")

	v.SetDefault("lifecycle.image", "evm-indexer-worker:latest")
	v.SetDefault("lifecycle.network_name", "evm-indexer-net")
	v.SetDefault("lifecycle.log_tail_lines", 100)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// ServerAddress returns the worker's liveness-endpoint listen address.
func (c *AppConfig) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
