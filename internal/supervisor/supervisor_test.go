package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeMonitor struct {
	id      string
	calls   int32
	panicOn int32
	errOn   int32
}

func (m *fakeMonitor) ID() string { return m.id }

func (m *fakeMonitor) Run(ctx context.Context) error {
	n := atomic.AddInt32(&m.calls, 1)
	if m.panicOn != 0 && n == m.panicOn {
		panic("simulated crash")
	}
	if m.errOn != 0 && n == m.errOn {
		return fmt.Errorf("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisor_RestartsOnPanic(t *testing.T) {
	m := &fakeMonitor{id: "chan-1", panicOn: 1}
	s := New([]Monitor{m}, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&m.calls), int32(2), "monitor must be restarted after panicking")
}

func TestSupervisor_RestartsOnError(t *testing.T) {
	m := &fakeMonitor{id: "chan-1", errOn: 1}
	s := New([]Monitor{m}, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&m.calls), int32(2))
}

func TestSupervisor_CrashedMonitorDoesNotAffectSibling(t *testing.T) {
	crashing := &fakeMonitor{id: "chan-1", panicOn: 1}
	healthy := &fakeMonitor{id: "chan-2"}
	s := New([]Monitor{crashing, healthy}, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&healthy.calls), "a healthy sibling must only run once and never be restarted")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&crashing.calls), int32(2))
}

func TestSupervisor_StopCancelsAllMonitors(t *testing.T) {
	m := &fakeMonitor{id: "chan-1"}
	s := New([]Monitor{m}, time.Second, testLogger())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&m.calls))
}
