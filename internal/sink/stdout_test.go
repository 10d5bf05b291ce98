package sink_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutSink_Deliver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := sink.NewStdoutSink(&buf)

	record := dispatch.NewRecord(dispatch.KindEvent, json.RawMessage(`{"action":"signup"}`))
	record.Attempt = 1
	require.NoError(t, s.Deliver(context.Background(), record))
	require.NoError(t, s.Close())

	var decoded dispatch.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, "event", decoded.Topic)
	assert.Equal(t, 1, decoded.Attempt)
	assert.JSONEq(t, `{"action":"signup"}`, string(decoded.Data))
}

func TestStdoutSink_OneLinePerRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := sink.NewStdoutSink(&buf)

	for i := 0; i < 3; i++ {
		record := dispatch.NewRecord(dispatch.KindAudit, json.RawMessage(`{"seq":1}`))
		require.NoError(t, s.Deliver(context.Background(), record))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "each line should be standalone JSON")
	}
}
