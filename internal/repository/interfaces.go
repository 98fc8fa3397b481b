// Package repository defines data access interfaces for iptvprobe entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

// ChannelConfigRepository defines operations for channel configuration persistence.
type ChannelConfigRepository interface {
	// Create creates a new channel configuration.
	Create(ctx context.Context, channel *models.ChannelConfig) error
	// GetByID retrieves a channel configuration by ID.
	GetByID(ctx context.Context, id string) (*models.ChannelConfig, error)
	// GetAll retrieves all channel configurations ordered by sort_order.
	GetAll(ctx context.Context) ([]*models.ChannelConfig, error)
	// GetEnabled retrieves all enabled channel configurations ordered by sort_order,
	// the set the supervisor loads once at startup and partitions across workers.
	GetEnabled(ctx context.Context) ([]*models.ChannelConfig, error)
	// Update updates an existing channel configuration.
	Update(ctx context.Context, channel *models.ChannelConfig) error
	// UpdateName updates only the display name of a channel. The probe
	// pipeline does not call it: a service_name resolved from PSI/SI is used
	// in memory and not written back to the stored channel.
	UpdateName(ctx context.Context, id string, name string) error
	// Delete deletes a channel configuration by ID.
	Delete(ctx context.Context, id string) error
}

// AlertRepository defines operations for alert persistence.
type AlertRepository interface {
	// GetActiveByChannelAndType returns the ACTIVE alert for (channel_id, alert_type)
	// if one exists, or nil if none is active.
	GetActiveByChannelAndType(ctx context.Context, channelID string, alertType models.AlertKind) (*models.Alert, error)
	// UpsertActive guards against duplicates by (channel_id, alert_type, status=ACTIVE):
	// if an ACTIVE row already exists it is returned unmodified; otherwise a new
	// row is inserted with status ACTIVE and started_at=now.
	UpsertActive(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	// ResolveActive transitions the ACTIVE alert for (channel_id, alert_type) to
	// RESOLVED with resolved_at=now. It is a no-op if no ACTIVE row exists.
	ResolveActive(ctx context.Context, channelID string, alertType models.AlertKind) error
	// ResolveStaleForDisabledChannels resolves every ACTIVE alert whose channel_id
	// is not present in enabledChannelIDs. Used by the startup sweep.
	ResolveStaleForDisabledChannels(ctx context.Context, enabledChannelIDs []string) (int64, error)
	// GetByChannelID retrieves alerts for a channel, most recent first.
	GetByChannelID(ctx context.Context, channelID string, limit int) ([]*models.Alert, error)
	// Acknowledge sets an alert's status to ACKNOWLEDGED and records ack_at.
	Acknowledge(ctx context.Context, id uint) error
}

// AlertSuppressionRepository defines operations for alert suppression windows.
type AlertSuppressionRepository interface {
	// GetActive returns the suppression row for (channel_id, alert_type) if its
	// suppressed_until is in the future, or nil otherwise.
	GetActive(ctx context.Context, channelID string, alertType models.AlertKind, now time.Time) (*models.AlertSuppression, error)
	// Set creates or replaces a suppression window for (channel_id, alert_type).
	Set(ctx context.Context, suppression *models.AlertSuppression) error
}
