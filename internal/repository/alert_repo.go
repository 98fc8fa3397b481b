package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/iptvprobe/internal/models"
	"gorm.io/gorm"
)

type alertRepo struct {
	db *gorm.DB
}

// NewAlertRepository creates a GORM-backed AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepo{db: db}
}

func (r *alertRepo) GetActiveByChannelAndType(ctx context.Context, channelID string, alertType models.AlertKind) (*models.Alert, error) {
	var alert models.Alert
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND alert_type = ? AND status = ?", channelID, alertType, models.AlertStatusActive).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active alert for %s/%s: %w", channelID, alertType, err)
	}
	return &alert, nil
}

// UpsertActive guards against duplicate ACTIVE rows for the same
// (channel_id, alert_type): if one is already ACTIVE it is returned as-is,
// otherwise the given alert is inserted with status ACTIVE.
func (r *alertRepo) UpsertActive(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	var result *models.Alert
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Alert
		err := tx.Where("channel_id = ? AND alert_type = ? AND status = ?",
			alert.ChannelID, alert.AlertType, models.AlertStatusActive).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			alert.Status = models.AlertStatusActive
			if alert.StartedAt.IsZero() {
				alert.StartedAt = models.Now()
			}
			if err := tx.Create(alert).Error; err != nil {
				return err
			}
			result = alert
			return nil
		case err != nil:
			return err
		default:
			result = &existing
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("upserting active alert for %s/%s: %w", alert.ChannelID, alert.AlertType, err)
	}
	return result, nil
}

// ResolveActive is a no-op when no ACTIVE row exists for the key, matching
// the idempotent resolution contract.
func (r *alertRepo) ResolveActive(ctx context.Context, channelID string, alertType models.AlertKind) error {
	now := models.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("channel_id = ? AND alert_type = ? AND status = ?", channelID, alertType, models.AlertStatusActive).
		Updates(map[string]any{
			"status":      models.AlertStatusResolved,
			"resolved_at": &now,
		})
	if res.Error != nil {
		return fmt.Errorf("resolving active alert for %s/%s: %w", channelID, alertType, res.Error)
	}
	return nil
}

func (r *alertRepo) ResolveStaleForDisabledChannels(ctx context.Context, enabledChannelIDs []string) (int64, error) {
	now := models.Now()
	q := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("status = ?", models.AlertStatusActive)
	if len(enabledChannelIDs) > 0 {
		q = q.Where("channel_id NOT IN ?", enabledChannelIDs)
	}
	res := q.Updates(map[string]any{
		"status":      models.AlertStatusResolved,
		"resolved_at": &now,
	})
	if res.Error != nil {
		return 0, fmt.Errorf("resolving stale alerts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *alertRepo) GetByChannelID(ctx context.Context, channelID string, limit int) ([]*models.Alert, error) {
	var alerts []*models.Alert
	q := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("listing alerts for %s: %w", channelID, err)
	}
	return alerts, nil
}

func (r *alertRepo) Acknowledge(ctx context.Context, id uint) error {
	now := models.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": models.AlertStatusAcknowledged,
			"ack_at": &now,
		})
	if res.Error != nil {
		return fmt.Errorf("acknowledging alert %d: %w", id, res.Error)
	}
	return nil
}
