package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/dispatchd/dispatchd/internal/sink"
	"github.com/urfave/cli/v3"
)

const (
	demoBurstSize = 5
	demoInterval  = 2 * time.Second
)

// runPrint dispatches generated records to stdout. Audit and system
// records additionally ask the daemon to pause, so the output visibly
// stalls while higher-priority work queues up behind the sleep.
func runPrint(ctx context.Context, c *cli.Command) error {
	logger, err := logging.NewLogger(
		logging.WithLogLevel(c.String("log-level")),
		logging.WithPretty(),
	)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := dispatch.NewDispatcher(sink.NewStdoutSink(nil), dispatch.WithLogger(logger))

	var d *daemon.Daemon[*dispatch.Record]
	handler := daemon.HandlerFunc[*dispatch.Record](func(ctx context.Context, msg daemon.Message[*dispatch.Record]) error {
		if err := printer.Handle(ctx, msg); err != nil {
			return err
		}
		switch msg.Kind {
		case dispatch.KindAudit:
			d.Sleep(500 * time.Millisecond)
		case dispatch.KindSystem:
			d.Sleep(time.Second)
		}
		return nil
	})

	d = daemon.New[*dispatch.Record](handler,
		daemon.WithName("print"),
		daemon.WithLogger(logger))
	if err := d.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(demoInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Stop drains whatever is still queued before returning
			d.Stop()
			return nil
		case <-ticker.C:
			for i := 0; i < demoBurstSize; i++ {
				kind := rand.Intn(3)
				payload := json.RawMessage(strconv.Quote(gofakeit.LetterN(10)))
				d.Enqueue(daemon.NewMessage(rand.Intn(10), kind, dispatch.NewRecord(kind, payload)))
			}
		}
	}
}

// runDrain uses a never-started daemon as a plain priority queue:
// enqueue a fixed backlog, then dequeue by hand and watch the
// priorities come out ascending.
func runDrain(ctx context.Context, c *cli.Command) error {
	d := daemon.New[int](daemon.HandlerFunc[int](func(ctx context.Context, msg daemon.Message[int]) error {
		return nil
	}), daemon.WithName("drain"))

	priorities := []int{50, 1, 0, 3, 40, 5, 1, 10, 0, 50, 4, 20, 1}
	for i, priority := range priorities {
		d.Enqueue(daemon.NewMessage(priority, i, i))
	}

	for {
		msg, ok := d.Dequeue()
		if !ok {
			return nil
		}
		fmt.Printf("Priority=%d; MsgID=%d\n", msg.Priority, msg.Kind)
	}
}
