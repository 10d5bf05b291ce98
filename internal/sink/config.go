package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/redis"
	"github.com/spf13/viper"
)

// Config selects the delivery sink from env-style keys. A provider is
// enabled by the presence of its server key; with none set, records go
// to stdout.
type Config struct {
	RabbitMQ *RabbitMQConfig
	Redis    *RedisConfig
}

// RedisConfig configures the Redis stream sink. The sink owns its own
// connection, so closing it never disturbs other Redis clients.
type RedisConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Database     int
	TLSEnabled   bool
	StreamPrefix string
}

const defaultRedisPort = 6379

func ParseConfig(v *viper.Viper) (*Config, error) {
	config := &Config{}
	config.parseRabbitMQConfig(v)
	config.parseRedisConfig(v)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) parseRabbitMQConfig(v *viper.Viper) {
	if !v.IsSet("SINK_RABBITMQ_SERVER_URL") {
		return
	}

	config := &RabbitMQConfig{}
	config.ServerURL = v.GetString("SINK_RABBITMQ_SERVER_URL")
	config.Username = v.GetString("SINK_RABBITMQ_USERNAME")
	config.Password = v.GetString("SINK_RABBITMQ_PASSWORD")

	if v.IsSet("SINK_RABBITMQ_EXCHANGE") {
		config.Exchange = v.GetString("SINK_RABBITMQ_EXCHANGE")
	} else {
		config.Exchange = DefaultRabbitMQExchange
	}

	if v.IsSet("SINK_RABBITMQ_QUEUE") {
		config.Queue = v.GetString("SINK_RABBITMQ_QUEUE")
	} else {
		config.Queue = DefaultRabbitMQQueue
	}

	config.UseTLS = v.GetBool("SINK_RABBITMQ_TLS")
	config.DeliveryLimit = v.GetInt("SINK_RABBITMQ_DELIVERY_LIMIT")

	c.RabbitMQ = config
}

func (c *Config) parseRedisConfig(v *viper.Viper) {
	if !v.IsSet("SINK_REDIS_HOST") {
		return
	}

	config := &RedisConfig{}
	config.Host = v.GetString("SINK_REDIS_HOST")

	if v.IsSet("SINK_REDIS_PORT") {
		config.Port = v.GetInt("SINK_REDIS_PORT")
	} else {
		config.Port = defaultRedisPort
	}

	config.Username = v.GetString("SINK_REDIS_USERNAME")
	config.Password = v.GetString("SINK_REDIS_PASSWORD")
	config.Database = v.GetInt("SINK_REDIS_DATABASE")
	config.TLSEnabled = v.GetBool("SINK_REDIS_TLS")

	if v.IsSet("SINK_REDIS_STREAM_PREFIX") {
		config.StreamPrefix = v.GetString("SINK_REDIS_STREAM_PREFIX")
	} else {
		config.StreamPrefix = defaultRedisStreamPrefix
	}

	c.Redis = config
}

func (c *Config) validate() error {
	if c.RabbitMQ != nil && c.Redis != nil {
		return errors.New("multiple sinks configured")
	}
	if err := c.validateRabbitMQConfig(); err != nil {
		return err
	}
	return c.validateRedisConfig()
}

func (c *Config) validateRabbitMQConfig() error {
	if c.RabbitMQ == nil {
		return nil
	}

	if c.RabbitMQ.ServerURL == "" {
		return errors.New("RabbitMQ Server URL is not set")
	}

	if c.RabbitMQ.Exchange == "" {
		return errors.New("RabbitMQ Exchange is not set")
	}

	if c.RabbitMQ.Queue == "" {
		return errors.New("RabbitMQ Queue is not set")
	}

	return nil
}

func (c *Config) validateRedisConfig() error {
	if c.Redis == nil {
		return nil
	}

	if c.Redis.Host == "" {
		return errors.New("Redis Host is not set")
	}

	if c.Redis.StreamPrefix == "" {
		return errors.New("Redis Stream Prefix is not set")
	}

	return nil
}

// SinkName reports which provider Build will construct, for startup logs.
func (c *Config) SinkName() string {
	switch {
	case c.RabbitMQ != nil:
		return "rabbitmq"
	case c.Redis != nil:
		return "redis"
	default:
		return "stdout"
	}
}

func (c *Config) Build(ctx context.Context) (dispatch.Sink, error) {
	switch {
	case c.RabbitMQ != nil:
		return NewRabbitMQSink(c.RabbitMQ), nil
	case c.Redis != nil:
		client, err := redis.New(ctx, c.Redis.toConnection())
		if err != nil {
			return nil, fmt.Errorf("sink redis client: %w", err)
		}
		return NewRedisSink(client, c.Redis.StreamPrefix), nil
	default:
		return NewStdoutSink(nil), nil
	}
}

// DeclareInfrastructure provisions broker-side resources for sinks that
// need them. Stdout and Redis have nothing to declare.
func (c *Config) DeclareInfrastructure(ctx context.Context) error {
	if c.RabbitMQ == nil {
		return nil
	}
	return DeclareRabbitMQ(ctx, c.RabbitMQ)
}

func (c *RedisConfig) toConnection() *redis.RedisConfig {
	return &redis.RedisConfig{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		Database:   c.Database,
		TLSEnabled: c.TLSEnabled,
	}
}
