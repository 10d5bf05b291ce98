package producer

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/dmetrics"
	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/dispatchd/dispatchd/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultBurstSize = 5

	maxPriority = 10
	kindCount   = 3
)

// Producer feeds the daemon with generated records so a running instance
// has traffic to dispatch. Every interval it enqueues a burst of records
// with random priorities, random kinds, and fake payloads.
type Producer struct {
	daemon    *daemon.Daemon[*dispatch.Record]
	logger    *logging.Logger
	metrics   dmetrics.DispatchdMetrics
	interval  time.Duration
	burstSize int
}

var _ worker.Worker = (*Producer)(nil)

type Option func(*Producer)

func WithInterval(interval time.Duration) Option {
	return func(p *Producer) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithBurstSize(size int) Option {
	return func(p *Producer) {
		if size > 0 {
			p.burstSize = size
		}
	}
}

func WithMetrics(m dmetrics.DispatchdMetrics) Option {
	return func(p *Producer) {
		p.metrics = m
	}
}

func New(d *daemon.Daemon[*dispatch.Record], logger *logging.Logger, opts ...Option) *Producer {
	p := &Producer{
		daemon:    d,
		logger:    logger,
		interval:  DefaultInterval,
		burstSize: DefaultBurstSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Producer) Name() string {
	return "producer"
}

// Run emits bursts until the context is cancelled. Cancellation is a
// graceful stop, not an error.
func (p *Producer) Run(ctx context.Context) error {
	logger := p.logger.Ctx(ctx)
	logger.Info("producer starting",
		zap.Duration("interval", p.interval),
		zap.Int("burst_size", p.burstSize))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("producer stopped")
			return nil
		case <-ticker.C:
			if err := p.burst(ctx); err != nil {
				logger.Error("producer burst failed", zap.Error(err))
			}
		}
	}
}

func (p *Producer) burst(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < p.burstSize; i++ {
		g.Go(func() error {
			msg, err := p.generate()
			if err != nil {
				return err
			}
			p.daemon.Enqueue(msg)
			if p.metrics != nil {
				p.metrics.MessageEnqueued(ctx, dmetrics.MessageOpts{Topic: msg.Payload.Topic})
			}
			return nil
		})
	}
	return g.Wait()
}

type recordPayload struct {
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Subject string `json:"subject"`
	Note    string `json:"note"`
}

func (p *Producer) generate() (daemon.Message[*dispatch.Record], error) {
	data, err := json.Marshal(recordPayload{
		Actor:   gofakeit.Username(),
		Action:  gofakeit.HackerVerb(),
		Subject: gofakeit.AppName(),
		Note:    gofakeit.Sentence(6),
	})
	if err != nil {
		return daemon.Message[*dispatch.Record]{}, err
	}

	kind := rand.Intn(kindCount)
	return daemon.NewMessage(rand.Intn(maxPriority), kind, dispatch.NewRecord(kind, data)), nil
}
