package dmetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type MessageOpts struct {
	Topic string
}

type DeliveryOpts struct {
	Sink  string
	Topic string
}

// DispatchdMetrics records the domain instruments. All methods are safe
// to call before SetupOTelSDK runs; the global provider delegates once
// it is configured.
type DispatchdMetrics interface {
	MessageEnqueued(ctx context.Context, opts MessageOpts)
	MessageDelivered(ctx context.Context, opts DeliveryOpts)
	MessageFailed(ctx context.Context, opts DeliveryOpts)
	MessageRetried(ctx context.Context, opts DeliveryOpts)
	DeliveryLatency(ctx context.Context, latency time.Duration, opts DeliveryOpts)
	RegisterQueueDepth(depth func() int64) error
}

type dispatchdMetrics struct {
	meter     metric.Meter
	enqueued  metric.Int64Counter
	delivered metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	latency   metric.Float64Histogram
}

var _ DispatchdMetrics = &dispatchdMetrics{}

func New() (DispatchdMetrics, error) {
	meter := otel.GetMeterProvider().Meter("github.com/dispatchd/dispatchd/internal/dmetrics")

	enqueued, err := meter.Int64Counter("dispatchd.message.enqueued",
		metric.WithDescription("Messages accepted into the dispatch queue"))
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter("dispatchd.message.delivered",
		metric.WithDescription("Messages delivered to a sink"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("dispatchd.message.failed",
		metric.WithDescription("Messages that exhausted their delivery attempts"))
	if err != nil {
		return nil, err
	}

	retried, err := meter.Int64Counter("dispatchd.message.retried",
		metric.WithDescription("Delivery retries scheduled"))
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("dispatchd.delivery.latency",
		metric.WithDescription("Enqueue-to-delivered latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &dispatchdMetrics{
		meter:     meter,
		enqueued:  enqueued,
		delivered: delivered,
		failed:    failed,
		retried:   retried,
		latency:   latency,
	}, nil
}

func (m *dispatchdMetrics) MessageEnqueued(ctx context.Context, opts MessageOpts) {
	m.enqueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", opts.Topic),
	))
}

func (m *dispatchdMetrics) MessageDelivered(ctx context.Context, opts DeliveryOpts) {
	m.delivered.Add(ctx, 1, deliveryAttributes(opts))
}

func (m *dispatchdMetrics) MessageFailed(ctx context.Context, opts DeliveryOpts) {
	m.failed.Add(ctx, 1, deliveryAttributes(opts))
}

func (m *dispatchdMetrics) MessageRetried(ctx context.Context, opts DeliveryOpts) {
	m.retried.Add(ctx, 1, deliveryAttributes(opts))
}

func (m *dispatchdMetrics) DeliveryLatency(ctx context.Context, latency time.Duration, opts DeliveryOpts) {
	m.latency.Record(ctx, latency.Seconds(), deliveryAttributes(opts))
}

// RegisterQueueDepth exposes the daemon's queue length as an observable
// gauge, sampled on each metric collection.
func (m *dispatchdMetrics) RegisterQueueDepth(depth func() int64) error {
	_, err := m.meter.Int64ObservableGauge("dispatchd.queue.depth",
		metric.WithDescription("Messages waiting in the dispatch queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(depth())
			return nil
		}))
	return err
}

func deliveryAttributes(opts DeliveryOpts) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("sink", opts.Sink),
		attribute.String("topic", opts.Topic),
	)
}
