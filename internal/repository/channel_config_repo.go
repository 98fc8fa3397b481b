package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/iptvprobe/internal/models"
	"gorm.io/gorm"
)

type channelConfigRepo struct {
	db *gorm.DB
}

// NewChannelConfigRepository creates a GORM-backed ChannelConfigRepository.
func NewChannelConfigRepository(db *gorm.DB) ChannelConfigRepository {
	return &channelConfigRepo{db: db}
}

func (r *channelConfigRepo) Create(ctx context.Context, channel *models.ChannelConfig) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("creating channel config: %w", err)
	}
	return nil
}

func (r *channelConfigRepo) GetByID(ctx context.Context, id string) (*models.ChannelConfig, error) {
	var channel models.ChannelConfig
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting channel config %s: %w", id, err)
	}
	return &channel, nil
}

func (r *channelConfigRepo) GetAll(ctx context.Context) ([]*models.ChannelConfig, error) {
	var channels []*models.ChannelConfig
	err := r.db.WithContext(ctx).Order("sort_order ASC").Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("listing channel configs: %w", err)
	}
	return channels, nil
}

func (r *channelConfigRepo) GetEnabled(ctx context.Context) ([]*models.ChannelConfig, error) {
	var channels []*models.ChannelConfig
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("sort_order ASC").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("listing enabled channel configs: %w", err)
	}
	return channels, nil
}

func (r *channelConfigRepo) Update(ctx context.Context, channel *models.ChannelConfig) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Save(channel).Error
	if err != nil {
		return fmt.Errorf("updating channel config %s: %w", channel.ID, err)
	}
	return nil
}

func (r *channelConfigRepo) UpdateName(ctx context.Context, id string, name string) error {
	err := r.db.WithContext(ctx).
		Model(&models.ChannelConfig{}).
		Where("id = ?", id).
		Update("name", name).Error
	if err != nil {
		return fmt.Errorf("updating channel config name %s: %w", id, err)
	}
	return nil
}

func (r *channelConfigRepo) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ChannelConfig{}).Error
	if err != nil {
		return fmt.Errorf("deleting channel config %s: %w", id, err)
	}
	return nil
}
