package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/iptvprobe/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type alertSuppressionRepo struct {
	db *gorm.DB
}

// NewAlertSuppressionRepository creates a GORM-backed AlertSuppressionRepository.
func NewAlertSuppressionRepository(db *gorm.DB) AlertSuppressionRepository {
	return &alertSuppressionRepo{db: db}
}

func (r *alertSuppressionRepo) GetActive(ctx context.Context, channelID string, alertType models.AlertKind, now time.Time) (*models.AlertSuppression, error) {
	var suppression models.AlertSuppression
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND alert_type = ? AND suppressed_until > ?",
			channelID, alertType, float64(now.Unix())).
		First(&suppression).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting alert suppression for %s/%s: %w", channelID, alertType, err)
	}
	return &suppression, nil
}

func (r *alertSuppressionRepo) Set(ctx context.Context, suppression *models.AlertSuppression) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "alert_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"suppressed_until"}),
		}).
		Create(suppression).Error
	if err != nil {
		return fmt.Errorf("setting alert suppression for %s/%s: %w", suppression.ChannelID, suppression.AlertType, err)
	}
	return nil
}
