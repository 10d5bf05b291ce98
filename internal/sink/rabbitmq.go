package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/rabbitmq/amqp091-go"
)

type RabbitMQConfig struct {
	ServerURL     string
	Username      string
	Password      string
	Exchange      string
	Queue         string
	UseTLS        bool
	DeliveryLimit int
}

const (
	DefaultRabbitMQExchange      = "dispatchd"
	DefaultRabbitMQQueue         = "dispatchd.records"
	defaultRabbitMQDeliveryLimit = 5
)

// RabbitMQSink publishes records to a topic exchange with the record topic
// as the routing key. The connection is established lazily on first delivery
// and re-established when the broker drops it.
type RabbitMQSink struct {
	url      string
	exchange string
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	mu       sync.Mutex
}

var _ dispatch.Sink = (*RabbitMQSink)(nil)

func NewRabbitMQSink(cfg *RabbitMQConfig) *RabbitMQSink {
	return &RabbitMQSink{
		url:      rabbitURL(cfg),
		exchange: cfg.Exchange,
	}
}

func (s *RabbitMQSink) Name() string {
	return "rabbitmq"
}

func (s *RabbitMQSink) Deliver(ctx context.Context, record *dispatch.Record) error {
	if err := s.ensureConnection(ctx); err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}

	if err := s.channel.PublishWithContext(ctx,
		s.exchange,   // exchange
		record.Topic, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   record.ID,
			Headers: amqp091.Table{
				"attempt": record.Attempt,
			},
			Body: record.Data,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", record.ID, err)
	}
	return nil
}

func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *RabbitMQSink) ensureConnection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.IsClosed() && s.channel != nil && !s.channel.IsClosed() {
		return nil
	}

	conn, err := amqp091.Dial(s.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if s.conn != nil {
		s.conn.Close()
	}
	if s.channel != nil {
		s.channel.Close()
	}
	s.conn = conn
	s.channel = channel

	return nil
}

// DeclareRabbitMQ declares the topic exchange, the record queue bound to
// it, and a dead-letter pair for messages exceeding the delivery limit.
// It dials its own short-lived connection so it can run before the sink
// ever publishes.
func DeclareRabbitMQ(ctx context.Context, cfg *RabbitMQConfig) error {
	conn, err := amqp091.Dial(rabbitURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveryLimit := cfg.DeliveryLimit
	if deliveryLimit <= 0 {
		deliveryLimit = defaultRabbitMQDeliveryLimit
	}

	dlx := cfg.Exchange + ".dlx"
	dlq := cfg.Queue + ".dlq"

	// Declare target exchange & queue
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		amqp091.Table{
			"x-queue-type":           "quorum",
			"x-dead-letter-exchange": dlx,
			"x-delivery-limit":       deliveryLimit,
		}, // arguments
	); err != nil {
		return err
	}
	if err := ch.QueueBind(
		cfg.Queue,    // queue name
		"#",          // routing key
		cfg.Exchange, // exchange
		false,
		nil,
	); err != nil {
		return err
	}

	// Declare dead-letter exchange & queue
	if err := ch.ExchangeDeclare(
		dlx,     // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		dlq,   // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp091.Table{
			"x-queue-type": "quorum",
		}, // arguments
	); err != nil {
		return err
	}
	if err := ch.QueueBind(
		dlq, // queue name
		"#", // routing key
		dlx, // exchange
		false,
		nil,
	); err != nil {
		return err
	}

	return nil
}

func rabbitURL(cfg *RabbitMQConfig) string {
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	if cfg.Username == "" {
		return fmt.Sprintf("%s://%s", scheme, cfg.ServerURL)
	}
	return fmt.Sprintf("%s://%s:%s@%s", scheme, cfg.Username, cfg.Password, cfg.ServerURL)
}
