// Package hotstate implements the per-channel hot-state KV sink: a Redis
// hash keyed by channel id with a TTL, plus pub/sub notification of metric
// and alert updates, per spec.md §4.I/§6.
package hotstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmylchreest/iptvprobe/internal/alertmanager"
	"github.com/jmylchreest/iptvprobe/internal/models"
)

const (
	metricsUpdateChannel = "metrics_update"
	alertUpdateChannel   = "alert_update"
)

// Sink writes channel status to Redis and publishes change notifications.
// Safe for concurrent use across channel monitors: the redis.Client is
// itself safe for concurrent use and owns its own connection pool.
type Sink struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Sink backed by client with the given hash TTL
// (RedisConfig.StateTTL, default 30s per spec.md §4.I).
func New(client *redis.Client, ttl time.Duration) *Sink {
	return &Sink{client: client, ttl: ttl}
}

// statusMessage is the JSON payload published on metrics_update, matching
// original_source/probe/storage/redis_writer.py's update_channel_status.
type statusMessage struct {
	Type            string  `json:"type"`
	ChannelID       string  `json:"channel_id"`
	Status          string  `json:"status"`
	ChannelName     string  `json:"channel_name"`
	BitrateKbps     float64 `json:"bitrate_kbps"`
	IsBlack         bool    `json:"is_black"`
	IsFrozen        bool    `json:"is_frozen"`
	IsSilent        bool    `json:"is_silent"`
	IsClipping      bool    `json:"is_clipping"`
	CCErrorsPerSec  float64 `json:"cc_errors_per_sec"`
	PCRJitterMs     float64 `json:"pcr_jitter_ms"`
	AudioRMS        float64 `json:"audio_rms"`
	VideoBrightness float64 `json:"video_brightness"`
	ThumbnailPath   string  `json:"thumbnail_path"`
	Timestamp       int64   `json:"ts"`
}

// UpdateChannelStatus writes the channel:<id>:status hash, refreshes its
// TTL, and publishes a metrics_update notification, pipelined as a single
// round trip per spec.md §4.I.
func (s *Sink) UpdateChannelStatus(ctx context.Context, metrics models.ChannelMetrics, channelStatus models.ChannelStatus) error {
	key := fmt.Sprintf("channel:%s:status", metrics.ChannelID)
	now := time.Now()

	fields := map[string]any{
		"status":            string(channelStatus),
		"channel_name":      metrics.ChannelName,
		"bitrate_kbps":      metrics.BitrateKbps,
		"is_black":          boolToInt(metrics.IsBlack),
		"is_frozen":         boolToInt(metrics.IsFrozen),
		"is_silent":         boolToInt(metrics.IsSilent),
		"is_clipping":       boolToInt(metrics.IsClipping),
		"cc_errors_per_sec": metrics.CCErrorsPerSec,
		"pcr_jitter_ms":     metrics.PCRJitterMs,
		"audio_rms":         metrics.AudioRMS,
		"video_brightness":  metrics.VideoBrightness,
		"thumbnail_path":    metrics.ThumbnailPath,
		"updated_at":        now.Unix(),
	}

	payload, err := json.Marshal(statusMessage{
		Type:            "channel_status",
		ChannelID:       metrics.ChannelID,
		Status:          string(channelStatus),
		ChannelName:     metrics.ChannelName,
		BitrateKbps:     metrics.BitrateKbps,
		IsBlack:         metrics.IsBlack,
		IsFrozen:        metrics.IsFrozen,
		IsSilent:        metrics.IsSilent,
		IsClipping:      metrics.IsClipping,
		CCErrorsPerSec:  metrics.CCErrorsPerSec,
		PCRJitterMs:     metrics.PCRJitterMs,
		AudioRMS:        metrics.AudioRMS,
		VideoBrightness: metrics.VideoBrightness,
		ThumbnailPath:   metrics.ThumbnailPath,
		Timestamp:       now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling status message: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Publish(ctx, metricsUpdateChannel, payload)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("writing channel status for %s: %w", metrics.ChannelID, err)
	}
	return nil
}

// PublishAlert publishes an alert_update notification. It satisfies
// alertmanager.AlertPublisher.
func (s *Sink) PublishAlert(ctx context.Context, event alertmanager.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling alert event: %w", err)
	}
	if err := s.client.Publish(ctx, alertUpdateChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing alert event: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
