package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/dispatchd/dispatchd/internal/backoff"
	"github.com/dispatchd/dispatchd/internal/redis"
	"github.com/dispatchd/dispatchd/internal/sink"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func getConfigLocations() []string {
	return []string{
		// Relative paths
		".env",
		".dispatchd.yaml",
		"config/dispatchd.yaml",
		"config/dispatchd/config.yaml",
		"config/dispatchd/.env",

		// Container-friendly absolute paths
		"/config/dispatchd.yaml",
		"/config/dispatchd/config.yaml",
		"/config/dispatchd/.env",
	}
}

// Flags carries command-line values into Parse. Flag values win over the
// config file and environment.
type Flags struct {
	Config   string
	LogLevel string
}

type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	OpenTelemetry *OpenTelemetryConfig `yaml:"open_telemetry"`

	// Daemon
	DaemonName           string `yaml:"daemon_name" env:"DAEMON_NAME"`
	RetryMaxAttempts     int    `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryIntervalSeconds int    `yaml:"retry_interval_seconds" env:"RETRY_INTERVAL_SECONDS"`
	RetrySchedule        []int  `yaml:"retry_schedule" env:"RETRY_SCHEDULE"`

	// Infrastructure
	Redis *RedisConfig `yaml:"redis"`
	Sink  *sink.Config `yaml:"-"`

	// Journal batcher configuration
	JournalStream            string `yaml:"journal_stream" env:"JOURNAL_STREAM"`
	JournalBatchSize         int    `yaml:"journal_batch_size" env:"JOURNAL_BATCH_SIZE"`
	JournalBatchDelaySeconds int    `yaml:"journal_batch_delay_seconds" env:"JOURNAL_BATCH_DELAY_SECONDS"`
	DisableJournal           bool   `yaml:"disable_journal" env:"DISABLE_JOURNAL"`

	// Producer
	ProducerIntervalSeconds int  `yaml:"producer_interval_seconds" env:"PRODUCER_INTERVAL_SECONDS"`
	ProducerBurstSize       int  `yaml:"producer_burst_size" env:"PRODUCER_BURST_SIZE"`
	DisableProducer         bool `yaml:"disable_producer" env:"DISABLE_PRODUCER"`

	// Shutdown
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`

	configPath string
	fileEnv    map[string]string
}

func (c *Config) initDefaults() {
	c.LogLevel = "info"
	c.DaemonName = "dispatcher"
	c.RetryMaxAttempts = 3
	c.RetryIntervalSeconds = 1
	c.Redis = &RedisConfig{
		Host: "127.0.0.1",
		Port: 6379,
	}
	c.JournalStream = "dispatchd:journal"
	c.JournalBatchSize = 100
	c.JournalBatchDelaySeconds = 1
	c.ProducerIntervalSeconds = 2
	c.ProducerBurstSize = 5
	c.ShutdownTimeoutSeconds = 10
}

func (c *Config) parseConfigFile(flagPath string, osInterface OSInterface) error {
	// Get config file path from flag or env
	configPath := flagPath
	if envPath := osInterface.Getenv("CONFIG"); envPath != "" {
		if configPath != "" && configPath != envPath {
			return fmt.Errorf("conflicting config paths: flag=%s env=%s", configPath, envPath)
		}
		configPath = envPath
	}

	// If no explicit config path, try default locations
	if configPath == "" {
		for _, loc := range getConfigLocations() {
			if _, err := osInterface.Stat(loc); err == nil {
				configPath = loc
				break
			}
		}
	}

	if configPath == "" {
		return nil
	}

	data, err := osInterface.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Parse based on file extension
	if strings.HasSuffix(strings.ToLower(configPath), ".env") {
		envMap, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return fmt.Errorf("error loading .env file: %w", err)
		}
		if err := env.ParseWithOptions(c, env.Options{
			Environment: envMap,
		}); err != nil {
			return fmt.Errorf("error parsing .env file: %w", err)
		}
		c.fileEnv = envMap
	} else {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing yaml config: %w", err)
		}
	}
	c.configPath = configPath
	return nil
}

func (c *Config) parseEnvVariables(osInterface OSInterface) error {
	if err := env.ParseWithOptions(c, env.Options{
		Environment: envMapFromOS(osInterface),
	}); err != nil {
		return fmt.Errorf("error parsing environment variables: %w", err)
	}
	return nil
}

// newViper builds the viper instance backing env-key driven sub-configs.
// Config file keys act as defaults; the process environment wins.
func (c *Config) newViper(osInterface OSInterface) *viper.Viper {
	v := viper.New()
	for key, value := range c.fileEnv {
		v.SetDefault(key, value)
	}
	for key, value := range envMapFromOS(osInterface) {
		v.Set(key, value)
	}
	return v
}

func (c *Config) parseSinkConfig(v *viper.Viper) error {
	sinkConfig, err := sink.ParseConfig(v)
	if err != nil {
		return fmt.Errorf("error parsing sink config: %w", err)
	}
	c.Sink = sinkConfig
	return nil
}

func envMapFromOS(osInterface OSInterface) map[string]string {
	environ := osInterface.Environ()
	envMap := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	return envMap
}

func Parse(flags Flags) (*Config, error) {
	return ParseWithOS(flags, defaultOS)
}

func ParseWithOS(flags Flags, osInterface OSInterface) (*Config, error) {
	var config Config

	// Initialize defaults
	config.initDefaults()

	// Parse config file
	if err := config.parseConfigFile(flags.Config, osInterface); err != nil {
		return nil, err
	}

	// Parse environment variables (highest priority)
	if err := config.parseEnvVariables(osInterface); err != nil {
		return nil, err
	}

	// Env-key driven sub-configs go through viper
	v := config.newViper(osInterface)
	if err := config.parseSinkConfig(v); err != nil {
		return nil, err
	}
	config.OpenTelemetry = config.OpenTelemetry.resolveDefaults(v)

	// Validate configuration
	if err := config.Validate(flags); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}

// GetRetryBackoff returns the delivery retry backoff and the effective
// attempt limit. A retry schedule overrides both the interval and the
// limit; attempts include the first delivery.
func (c *Config) GetRetryBackoff() (backoff.Backoff, int) {
	if len(c.RetrySchedule) > 0 {
		schedule := make([]time.Duration, len(c.RetrySchedule))
		for i, seconds := range c.RetrySchedule {
			schedule[i] = time.Duration(seconds) * time.Second
		}
		return &backoff.ScheduledBackoff{Schedule: schedule}, len(schedule) + 1
	}
	return &backoff.ExponentialBackoff{Interval: c.RetryInterval(), Base: 2}, c.RetryMaxAttempts
}

func (c *Config) JournalBatchDelay() time.Duration {
	return time.Duration(c.JournalBatchDelaySeconds) * time.Second
}

func (c *Config) ProducerInterval() time.Duration {
	return time.Duration(c.ProducerIntervalSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

type RedisConfig struct {
	Host       string `yaml:"host" env:"REDIS_HOST"`
	Port       int    `yaml:"port" env:"REDIS_PORT"`
	Username   string `yaml:"username" env:"REDIS_USERNAME"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	Database   int    `yaml:"database" env:"REDIS_DATABASE"`
	TLSEnabled bool   `yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

func (c *RedisConfig) ToConfig() *redis.RedisConfig {
	return &redis.RedisConfig{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		Database:   c.Database,
		TLSEnabled: c.TLSEnabled,
	}
}
