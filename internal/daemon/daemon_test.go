package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock handler for testing
type recordingHandler struct {
	mu         sync.Mutex
	priorities []int
	payloads   []string
	handleFunc func(ctx context.Context, msg Message[string]) error
}

func (h *recordingHandler) Handle(ctx context.Context, msg Message[string]) error {
	h.mu.Lock()
	h.priorities = append(h.priorities, msg.Priority)
	h.payloads = append(h.payloads, msg.Payload)
	h.mu.Unlock()

	if h.handleFunc != nil {
		return h.handleFunc(ctx, msg)
	}
	return nil
}

func (h *recordingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.priorities)
}

func (h *recordingHandler) Priorities() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.priorities...)
}

func (h *recordingHandler) Payloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

// Tests

func TestDaemon_PriorityOrdering(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := New[string](handler, WithName("priorities"))

	// Backlog built up before the worker starts, so processing order is
	// decided purely by priority.
	for i, priority := range []int{20, 40, 4, 3, 0, 10, 1, 0, 5, 50, 50, 1, 1} {
		d.Enqueue(NewMessage(priority, 0, fmt.Sprintf("Priority=%d; MsgID=%d", priority, i)))
	}

	require.NoError(t, d.Start())
	d.Stop()

	assert.Equal(t, []int{0, 0, 1, 1, 1, 3, 4, 5, 10, 20, 40, 50, 50}, handler.Priorities())
}

func TestDaemon_Dequeue_Empty(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})

	// An empty dequeue is a normal result, not an error.
	msg, ok := d.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, msg.Payload)

	d.Enqueue(NewMessage(1, 0, "only"))
	_, ok = d.Dequeue()
	assert.True(t, ok)

	_, ok = d.Dequeue()
	assert.False(t, ok)
}

func TestDaemon_ManualDrain_NeverStarted(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := New[string](handler)

	for _, priority := range []int{9, 2, 7, 2, 5} {
		d.Enqueue(NewMessage(priority, 0, fmt.Sprintf("p%d", priority)))
	}

	// A never-started daemon is still usable as a plain priority queue.
	n := d.Drain(context.Background())

	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 5, 7, 9}, handler.Priorities())
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, StateIdle, d.State())
}

func TestDaemon_EqualPriorities_DeliveredAsSet(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := New[string](handler)

	payloads := []string{"a", "b", "c", "d", "e"}
	for _, p := range payloads {
		d.Enqueue(NewMessage(3, 0, p))
	}

	d.Drain(context.Background())

	// Order among equal priorities is unspecified; only the set is
	// guaranteed.
	assert.ElementsMatch(t, payloads, handler.Payloads())
}

func TestDaemon_Start_Idempotent(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	loopStarts := 0

	handler := &recordingHandler{}
	d := New[string](handler, WithHooks(Hooks{
		BeforeLoop: func(ctx context.Context) {
			mu.Lock()
			loopStarts++
			mu.Unlock()
		},
	}))

	require.NoError(t, d.Start())
	require.NoError(t, d.Start())
	require.NoError(t, d.Start())

	for i := 0; i < 10; i++ {
		d.Enqueue(NewMessage(i, 0, fmt.Sprintf("msg-%d", i)))
	}
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, loopStarts, "only one worker loop should run")
	assert.Equal(t, 10, handler.Count(), "each message should be handled exactly once")
}

func TestDaemon_Start_AfterTermination(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})

	require.NoError(t, d.Start())
	d.Stop()

	assert.Equal(t, StateTerminated, d.State())
	assert.ErrorIs(t, d.Start(), ErrTerminated)
}

func TestDaemon_Stop_NeverStarted(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})

	// Must return immediately without a worker to wait for.
	d.Stop()

	assert.Equal(t, StateIdle, d.State())
	require.NoError(t, d.Start())
	d.Stop()
	assert.Equal(t, StateTerminated, d.State())
}

func TestDaemon_Stop_DrainsEverythingEnqueuedBefore(t *testing.T) {
	t.Parallel()

	seen := make(map[string]int)
	var seenMu sync.Mutex
	handler := HandlerFunc[string](func(ctx context.Context, msg Message[string]) error {
		seenMu.Lock()
		seen[msg.Payload]++
		seenMu.Unlock()
		return nil
	})

	d := New[string](handler, WithName("drain"))
	require.NoError(t, d.Start())

	const producers = 5
	const perProducer = 20

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d.Enqueue(NewMessage(i%7, p, fmt.Sprintf("p%d-m%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	d.Stop()

	seenMu.Lock()
	defer seenMu.Unlock()
	assert.Len(t, seen, producers*perProducer, "every message enqueued before Stop must be handled")
	for payload, count := range seen {
		assert.Equal(t, 1, count, "message %s handled more than once", payload)
	}
}

func TestDaemon_Sleep_SuppressedWhileSleeping(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})
	require.NoError(t, d.Start())

	assert.True(t, d.Sleep(200*time.Millisecond))

	require.Eventually(t, d.Sleeping, time.Second, time.Millisecond,
		"worker should enter the sleep")

	// A second request while the first is being honored is dropped.
	assert.False(t, d.Sleep(50*time.Millisecond))

	require.Eventually(t, func() bool { return !d.Sleeping() }, time.Second, time.Millisecond,
		"worker should wake up again")

	assert.True(t, d.Sleep(10*time.Millisecond))

	d.Stop()
}

func TestDaemon_Sleep_NonPositive(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})

	assert.False(t, d.Sleep(0))
	assert.False(t, d.Sleep(-time.Second))
}

func TestDaemon_Sleep_DelaysProcessing(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := New[string](handler)
	require.NoError(t, d.Start())

	require.True(t, d.Sleep(200*time.Millisecond))
	require.Eventually(t, d.Sleeping, time.Second, time.Millisecond)

	d.Enqueue(NewMessage(0, 0, "deferred"))

	// Still asleep: the message must wait for the worker.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, handler.Count())

	require.Eventually(t, func() bool { return handler.Count() == 1 }, time.Second, time.Millisecond)

	d.Stop()
}

func TestDaemon_LastDelay(t *testing.T) {
	t.Parallel()

	const handleTime = 20 * time.Millisecond

	handler := &recordingHandler{
		handleFunc: func(ctx context.Context, msg Message[string]) error {
			time.Sleep(handleTime)
			return nil
		},
	}

	d := New[string](handler)
	assert.Zero(t, d.LastDelay())

	require.NoError(t, d.Start())
	d.Enqueue(NewMessage(0, 0, "timed"))

	require.Eventually(t, func() bool { return d.LastDelay() > 0 }, time.Second, time.Millisecond)

	// Latency covers enqueue to handled, so handling time is included.
	assert.GreaterOrEqual(t, d.LastDelay(), handleTime)
	assert.Less(t, d.LastDelay(), 2*time.Second)

	d.Stop()
}

func TestDaemon_Hooks_Order(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []string
	record := func(name string) func(ctx context.Context) {
		return func(ctx context.Context) {
			mu.Lock()
			events = append(events, name)
			mu.Unlock()
		}
	}

	handler := HandlerFunc[string](func(ctx context.Context, msg Message[string]) error {
		mu.Lock()
		events = append(events, "handle")
		mu.Unlock()
		return nil
	})

	d := New[string](handler, WithHooks(Hooks{
		BeforeLoop: record("before_loop"),
		BeforeEach: record("before_each"),
		AfterEach:  record("after_each"),
		AfterLoop:  record("after_loop"),
	}))

	require.NoError(t, d.Start())
	d.Enqueue(NewMessage(1, 0, "first"))
	d.Enqueue(NewMessage(2, 0, "second"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, e := range events {
			if e == "handle" {
				n++
			}
		}
		return n == 2
	}, time.Second, time.Millisecond)

	d.Stop()

	mu.Lock()
	defer mu.Unlock()

	require.NotEmpty(t, events)
	assert.Equal(t, "before_loop", events[0])
	assert.Equal(t, "after_loop", events[len(events)-1])

	counts := map[string]int{}
	for _, e := range events {
		counts[e]++
	}
	assert.Equal(t, 1, counts["before_loop"])
	assert.Equal(t, 1, counts["after_loop"])
	assert.Equal(t, 2, counts["handle"])
	// The per-iteration hooks run even on passes that find the queue
	// empty, so they can outnumber handled messages.
	assert.Equal(t, counts["before_each"], counts["after_each"])
	assert.GreaterOrEqual(t, counts["before_each"], counts["handle"])

	for i, e := range events {
		if e == "handle" {
			require.Greater(t, i, 0)
			assert.Equal(t, "before_each", events[i-1], "handle must be preceded by before_each")
			require.Less(t, i+1, len(events))
			assert.Equal(t, "after_each", events[i+1], "handle must be followed by after_each")
		}
	}
}

func TestDaemon_AfterLoop_Custom_SkipsDrain(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	handler := HandlerFunc[string](func(ctx context.Context, msg Message[string]) error {
		once.Do(func() { close(started) })
		<-gate
		return nil
	})

	afterLoopCalled := false
	d := New[string](handler, WithHooks(Hooks{
		AfterLoop: func(ctx context.Context) { afterLoopCalled = true },
	}))

	for i := 0; i < 4; i++ {
		d.Enqueue(NewMessage(i, 0, fmt.Sprintf("msg-%d", i)))
	}
	require.NoError(t, d.Start())

	<-started

	stopDone := make(chan struct{})
	go func() {
		d.Stop()
		close(stopDone)
	}()

	require.Eventually(t, func() bool { return d.State() == StateDraining }, time.Second, time.Millisecond)
	close(gate)

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	// The custom hook replaces the default drain, so the backlog stays.
	assert.True(t, afterLoopCalled)
	assert.Equal(t, 3, d.Len())
}

func TestDaemon_AfterLoop_DefaultDrains(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	handled := 0
	var handledMu sync.Mutex
	handler := HandlerFunc[string](func(ctx context.Context, msg Message[string]) error {
		once.Do(func() { close(started) })
		<-gate
		handledMu.Lock()
		handled++
		handledMu.Unlock()
		return nil
	})

	d := New[string](handler)

	for i := 0; i < 4; i++ {
		d.Enqueue(NewMessage(i, 0, fmt.Sprintf("msg-%d", i)))
	}
	require.NoError(t, d.Start())

	<-started

	stopDone := make(chan struct{})
	go func() {
		d.Stop()
		close(stopDone)
	}()

	require.Eventually(t, func() bool { return d.State() == StateDraining }, time.Second, time.Millisecond)
	close(gate)

	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	handledMu.Lock()
	defer handledMu.Unlock()
	assert.Equal(t, 4, handled, "default epilogue should drain the backlog")
	assert.Equal(t, 0, d.Len())
}

func TestDaemon_HandlerError_KeepsRunning(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{
		handleFunc: func(ctx context.Context, msg Message[string]) error {
			if msg.Kind == 1 {
				return errors.New("transient failure")
			}
			return nil
		},
	}

	d := New[string](handler)
	require.NoError(t, d.Start())

	d.Enqueue(NewMessage(0, 1, "fails"))
	d.Enqueue(NewMessage(1, 0, "succeeds"))

	require.Eventually(t, func() bool { return handler.Count() == 2 }, time.Second, time.Millisecond)
	assert.True(t, d.Running(), "a handler error must not kill the worker")

	d.Stop()
}

func TestDaemon_HandlerPanic_Isolated(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{
		handleFunc: func(ctx context.Context, msg Message[string]) error {
			if msg.Kind == 1 {
				panic("poison message")
			}
			return nil
		},
	}

	d := New[string](handler)
	require.NoError(t, d.Start())

	d.Enqueue(NewMessage(0, 1, "poison"))
	d.Enqueue(NewMessage(1, 0, "fine"))

	require.Eventually(t, func() bool { return handler.Count() == 2 }, time.Second, time.Millisecond)
	assert.True(t, d.Running(), "a handler panic must not kill the worker")

	d.Stop()
	assert.Equal(t, StateTerminated, d.State())
}

func TestDaemon_Enqueue_AfterTermination(t *testing.T) {
	t.Parallel()

	d := New[string](&recordingHandler{})
	require.NoError(t, d.Start())
	d.Stop()

	// Accepted but never processed; still reachable via Dequeue.
	d.Enqueue(NewMessage(1, 0, "late"))
	assert.Equal(t, 1, d.Len())

	msg, ok := d.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "late", msg.Payload)
}

func TestDaemon_Shutdown_Deadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	handler := HandlerFunc[string](func(ctx context.Context, msg Message[string]) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	d := New[string](handler)
	require.NoError(t, d.Start())
	d.Enqueue(NewMessage(0, 0, "stuck"))

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The worker keeps draining in the background; once released it
	// still terminates.
	close(release)
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after release")
	}
	assert.Equal(t, StateTerminated, d.State())
}

func TestDaemon_New_NilHandler(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		New[string](nil)
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
