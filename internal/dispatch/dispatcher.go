package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/dmetrics"
	"github.com/dispatchd/dispatchd/internal/journal"
	"github.com/dispatchd/dispatchd/internal/logging"
	"go.uber.org/zap"
)

// Dispatcher is the production message handler: it delivers each record
// to the sink, reports metrics, and journals the outcome. Journal and
// metrics are optional; a Dispatcher built with just a sink still works.
type Dispatcher struct {
	sink    Sink
	journal *journal.Writer
	metrics dmetrics.DispatchdMetrics
	logger  *logging.Logger
}

var _ daemon.Handler[*Record] = &Dispatcher{}

type DispatcherOption func(*Dispatcher)

func WithJournal(w *journal.Writer) DispatcherOption {
	return func(d *Dispatcher) {
		d.journal = w
	}
}

func WithMetrics(m dmetrics.DispatchdMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithLogger(logger *logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	if sink == nil {
		panic("dispatch: nil sink")
	}
	d := &Dispatcher{sink: sink}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Handle(ctx context.Context, msg daemon.Message[*Record]) error {
	record := msg.Payload
	if record == nil {
		return errors.New("dispatch: nil record")
	}
	record.Attempt++

	opts := dmetrics.DeliveryOpts{Sink: d.sink.Name(), Topic: record.Topic}
	if record.Attempt > 1 && d.metrics != nil {
		d.metrics.MessageRetried(ctx, opts)
	}

	err := d.sink.Deliver(ctx, record)
	latency := time.Since(msg.EnqueuedAt)

	if err != nil {
		if d.metrics != nil {
			d.metrics.MessageFailed(ctx, opts)
		}
		d.journalOutcome(record, journal.StatusFailed, err, latency)
		return fmt.Errorf("deliver record %s to %s: %w", record.ID, d.sink.Name(), err)
	}

	if d.metrics != nil {
		d.metrics.MessageDelivered(ctx, opts)
		d.metrics.DeliveryLatency(ctx, latency, opts)
	}
	d.journalOutcome(record, journal.StatusDelivered, nil, latency)

	if d.logger != nil {
		d.logger.Ctx(ctx).Debug("record dispatched",
			zap.String("record_id", record.ID),
			zap.String("topic", record.Topic),
			zap.String("sink", d.sink.Name()),
			zap.Duration("latency", latency))
	}
	return nil
}

func (d *Dispatcher) journalOutcome(record *Record, status string, deliverErr error, latency time.Duration) {
	if d.journal == nil {
		return
	}
	entry := &journal.Entry{
		RecordID:     record.ID,
		Topic:        record.Topic,
		Status:       status,
		Attempt:      record.Attempt,
		Latency:      latency,
		DispatchedAt: time.Now(),
	}
	if deliverErr != nil {
		entry.Error = deliverErr.Error()
	}
	d.journal.Add(entry)
}
