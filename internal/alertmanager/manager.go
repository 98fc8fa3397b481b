// Package alertmanager dedups active alerts per channel and drives the
// upsert/resolve transitions against the alert SQL store and hot-state
// pub/sub, per spec.md §4.H.
package alertmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/iptvprobe/internal/models"
	"github.com/jmylchreest/iptvprobe/internal/repository"
	"github.com/jmylchreest/iptvprobe/internal/status"
)

// AlertPublisher is the subset of the hot-state sink the alert manager
// needs: publishing alert_update events. Kept as a narrow interface so the
// manager can be tested without a real Redis client.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
}

// AlertEvent is the JSON payload published to the alert_update pub/sub
// channel, per spec.md §6.
type AlertEvent struct {
	Type        string              `json:"type"`
	AlertID     uint                `json:"alert_id"`
	ChannelID   string              `json:"channel_id"`
	ChannelName string              `json:"channel_name"`
	AlertType   models.AlertKind    `json:"alert_type"`
	Severity    models.AlertSeverity `json:"severity"`
	Status      models.ChannelStatus `json:"status"`
	Timestamp   int64               `json:"ts"`
}

// allKinds lists every AlertKind whose resolution this manager tracks
// (used to flip off cached ids when a condition clears this tick).
var allKinds = []models.AlertKind{
	models.AlertOffline,
	models.AlertBlackScreen,
	models.AlertFrozen,
	models.AlertSilent,
	models.AlertClipping,
	models.AlertCCError,
	models.AlertPCRJitter,
	models.AlertBitrateAbnormal,
	models.AlertMosaic,
	models.AlertAudioStutter,
}

// Manager is the per-monitor alert dedup/upsert/resolve orchestrator. It is
// not safe for concurrent use; each channel monitor owns one.
type Manager struct {
	alerts       repository.AlertRepository
	suppressions repository.AlertSuppressionRepository
	publisher    AlertPublisher
	logger       *slog.Logger

	publishedIDs map[models.AlertKind]uint
}

// New returns a Manager for one channel.
func New(alerts repository.AlertRepository, suppressions repository.AlertSuppressionRepository, publisher AlertPublisher, logger *slog.Logger) *Manager {
	return &Manager{
		alerts:       alerts,
		suppressions: suppressions,
		publisher:    publisher,
		logger:       logger,
		publishedIDs: make(map[models.AlertKind]uint),
	}
}

// Handle evaluates metrics for this tick and performs every upsert/resolve
// transition implied by spec.md §4.H. Sink/store failures are logged and
// never propagated, matching spec.md §7 ("never halt the monitor").
func (m *Manager) Handle(ctx context.Context, metrics models.ChannelMetrics, channelStatus models.ChannelStatus) {
	active := status.ActiveAlerts(metrics)
	activeSet := make(map[models.AlertKind]bool, len(active))
	for _, kind := range active {
		activeSet[kind] = true
	}

	for _, kind := range active {
		m.upsert(ctx, metrics, channelStatus, kind)
	}

	for _, kind := range allKinds {
		if !activeSet[kind] {
			m.resolve(ctx, metrics.ChannelID, kind)
		}
	}
}

func (m *Manager) upsert(ctx context.Context, metrics models.ChannelMetrics, channelStatus models.ChannelStatus, kind models.AlertKind) {
	if suppressed, err := m.isSuppressed(ctx, metrics.ChannelID, kind); err != nil {
		m.logger.Debug("alert suppression lookup failed", "channel_id", metrics.ChannelID, "alert_type", kind, "error", err)
	} else if suppressed {
		return
	}

	alert := &models.Alert{
		ChannelID:     metrics.ChannelID,
		ChannelName:   metrics.ChannelName,
		AlertType:     kind,
		Severity:      models.SeverityOf(kind),
		Message:       fmt.Sprintf("%s: %s", metrics.ChannelName, kind),
		ThumbnailPath: metrics.ThumbnailPath,
	}
	result, err := m.alerts.UpsertActive(ctx, alert)
	if err != nil {
		m.logger.Warn("alert upsert failed", "channel_id", metrics.ChannelID, "alert_type", kind, "error", err)
		return
	}

	if m.publishedIDs[kind] != result.ID {
		m.publishedIDs[kind] = result.ID
		if m.publisher == nil {
			return
		}
		event := AlertEvent{
			Type:        "alert_new",
			AlertID:     result.ID,
			ChannelID:   metrics.ChannelID,
			ChannelName: metrics.ChannelName,
			AlertType:   kind,
			Severity:    models.SeverityOf(kind),
			Status:      channelStatus,
			Timestamp:   metrics.Timestamp.Unix(),
		}
		if err := m.publisher.PublishAlert(ctx, event); err != nil {
			m.logger.Debug("alert publish failed", "channel_id", metrics.ChannelID, "alert_type", kind, "error", err)
		}
	}
}

func (m *Manager) resolve(ctx context.Context, channelID string, kind models.AlertKind) {
	delete(m.publishedIDs, kind)
	if err := m.alerts.ResolveActive(ctx, channelID, kind); err != nil {
		m.logger.Debug("alert resolve failed", "channel_id", channelID, "alert_type", kind, "error", err)
	}
}

func (m *Manager) isSuppressed(ctx context.Context, channelID string, kind models.AlertKind) (bool, error) {
	if m.suppressions == nil {
		return false, nil
	}
	suppression, err := m.suppressions.GetActive(ctx, channelID, kind, time.Now())
	if err != nil {
		return false, err
	}
	return suppression != nil, nil
}

// SweepStaleAlerts resolves ACTIVE alerts for channels no longer enabled.
// Run once at supervisor startup, per spec.md §9's open question ("a
// startup sweep... would tighten this").
func SweepStaleAlerts(ctx context.Context, alerts repository.AlertRepository, enabledChannelIDs []string) (int64, error) {
	return alerts.ResolveStaleForDisabledChannels(ctx, enabledChannelIDs)
}
