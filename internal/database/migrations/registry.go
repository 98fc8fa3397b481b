// Package migrations provides database migration management for iptvprobe.
package migrations

import (
	"github.com/jmylchreest/iptvprobe/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002Indexes(),
	}
}

// migration001Schema creates the channels/alerts/alert_suppression tables
// using GORM AutoMigrate, matching the schema in the external interfaces.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create channels, alerts, and alert_suppression tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.ChannelConfig{},
				&models.Alert{},
				&models.AlertSuppression{},
			)
		},
	}
}

// migration002Indexes adds the composite indexes named in the external
// interfaces: (channel_id, started_at DESC) and (status, started_at DESC)
// on the alerts table. GORM's struct tags already create single-column
// indexes; this migration adds the composite forms explicitly since
// AutoMigrate does not synthesize multi-column indexes from tags alone.
func migration002Indexes() Migration {
	return Migration{
		Version:     "002",
		Description: "Add composite indexes on alerts(channel_id, started_at) and alerts(status, started_at)",
		Up: func(tx *gorm.DB) error {
			if err := tx.Exec(
				"CREATE INDEX IF NOT EXISTS idx_alerts_channel_started_at ON alerts (channel_id, started_at DESC)",
			).Error; err != nil {
				return err
			}
			return tx.Exec(
				"CREATE INDEX IF NOT EXISTS idx_alerts_status_started_at ON alerts (status, started_at DESC)",
			).Error
		},
	}
}
