// Package tsdb implements the batched time-series writer sink, per
// spec.md §4.I, grounded on original_source/probe/storage/influx_writer.py.
package tsdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

// Sink batches ChannelMetrics points and flushes them to InfluxDB either
// when the batch fills or on a fixed interval, whichever comes first.
// Write failures are logged and drop the current batch, per spec.md §7.
type Sink struct {
	client influxdb2.Client
	org    string
	bucket string

	batchSize int
	logger    *slog.Logger

	mu     sync.Mutex
	buffer []*write.Point

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New returns a Sink connected to url with the given org/bucket/token. New
// starts the background flush loop itself; stop it with Close on shutdown.
func New(url, token, org, bucket string, batchSize int, flushInterval time.Duration, logger *slog.Logger) *Sink {
	s := &Sink{
		client:    influxdb2.NewClient(url, token),
		org:       org,
		bucket:    bucket,
		batchSize: batchSize,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go s.flushLoop(flushInterval)
	return s
}

// WriteMetrics appends one point for (metrics, status) to the buffer,
// flushing immediately if the batch is now full.
func (s *Sink) WriteMetrics(ctx context.Context, metrics models.ChannelMetrics, status models.ChannelStatus) {
	point := influxdb2.NewPoint(
		"channel_metrics",
		map[string]string{
			"channel_id":   metrics.ChannelID,
			"channel_name": metrics.ChannelName,
			"status":       string(status),
		},
		map[string]any{
			"bitrate_kbps":      metrics.BitrateKbps,
			"cc_errors_per_sec": metrics.CCErrorsPerSec,
			"pcr_jitter_ms":     metrics.PCRJitterMs,
			"video_brightness":  metrics.VideoBrightness,
			"audio_rms":         metrics.AudioRMS,
			"is_black":          boolToInt(metrics.IsBlack),
			"is_frozen":         boolToInt(metrics.IsFrozen),
			"is_silent":         boolToInt(metrics.IsSilent),
			"is_clipping":       boolToInt(metrics.IsClipping),
			"is_mosaic":         boolToInt(metrics.IsMosaic),
			"mosaic_ratio":      metrics.MosaicRatio,
			"is_stuttering":     boolToInt(metrics.IsStuttering),
			"stutter_count":     metrics.StutterCount,
		},
		metrics.Timestamp,
	)

	s.mu.Lock()
	s.buffer = append(s.buffer, point)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(ctx)
	}
}

func (s *Sink) flushLoop(interval time.Duration) {
	defer close(s.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush(context.Background())
		case <-s.stopCh:
			s.flush(context.Background())
			return
		}
	}
}

func (s *Sink) flush(ctx context.Context) {
	s.mu.Lock()
	points := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(points) == 0 {
		return
	}

	writeAPI := s.client.WriteAPIBlocking(s.org, s.bucket)
	if err := writeAPI.WritePoint(ctx, points...); err != nil {
		s.logger.Warn("influx write failed, dropping batch", "points", len(points), "error", err)
	}
}

// Close stops the flush loop, flushing any buffered points first, and
// closes the underlying client.
func (s *Sink) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.client.Close()
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
