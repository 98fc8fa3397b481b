package tsdb

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

// newTestSink connects to INFLUX_TEST_URL and skips the test if no server
// answers, matching the live-dependency test style used for the hot-state
// sink.
func newTestSink(t *testing.T) *Sink {
	t.Helper()
	url := os.Getenv("INFLUX_TEST_URL")
	if url == "" {
		url = "http://localhost:8086"
	}
	token := os.Getenv("INFLUX_TEST_TOKEN")
	client := influxdb2.NewClient(url, token)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ok, err := client.Ping(ctx)
	if err != nil || !ok {
		client.Close()
		t.Skipf("no influxdb available at %s: %v", url, err)
	}
	client.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(url, token, "testorg", "testbucket", 2, time.Hour, logger)
}

func TestWriteMetrics_FlushesWhenBatchFull(t *testing.T) {
	s := newTestSink(t)
	defer s.Close()

	m := models.ChannelMetrics{ChannelID: "chan-1", ChannelName: "Test", BitrateKbps: 4000, Timestamp: time.Now()}
	s.WriteMetrics(context.Background(), m, models.StatusNormal)

	s.mu.Lock()
	bufferedAfterFirst := len(s.buffer)
	s.mu.Unlock()
	require.Equal(t, 1, bufferedAfterFirst)

	s.WriteMetrics(context.Background(), m, models.StatusNormal)

	s.mu.Lock()
	bufferedAfterSecond := len(s.buffer)
	s.mu.Unlock()
	require.Equal(t, 0, bufferedAfterSecond, "batch of size 2 must flush on the second point")
}

func TestClose_FlushesRemainingBuffer(t *testing.T) {
	s := newTestSink(t)

	m := models.ChannelMetrics{ChannelID: "chan-1", ChannelName: "Test", Timestamp: time.Now()}
	s.WriteMetrics(context.Background(), m, models.StatusNormal)
	s.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Empty(t, s.buffer)
}
