package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dispatchd/dispatchd/internal/dispatch"
)

// StdoutSink writes each record as a single JSON line. It is the default
// sink and is mostly useful for local development and demos.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

var _ dispatch.Sink = (*StdoutSink)(nil)

func NewStdoutSink(out io.Writer) *StdoutSink {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutSink{out: out}
}

func (s *StdoutSink) Name() string {
	return "stdout"
}

func (s *StdoutSink) Deliver(_ context.Context, record *dispatch.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, string(line)); err != nil {
		return fmt.Errorf("write record %s: %w", record.ID, err)
	}
	return nil
}

func (s *StdoutSink) Close() error {
	return nil
}
