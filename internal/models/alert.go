package models

// AlertStatus is the lifecycle state of a persisted Alert row.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

// AlertSeverity classifies an AlertKind's urgency.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityWarning  AlertSeverity = "WARNING"
)

// AlertKind enumerates the fault conditions the status evaluator can raise.
type AlertKind string

const (
	AlertBlackScreen      AlertKind = "BLACK_SCREEN"
	AlertFrozen           AlertKind = "FROZEN"
	AlertSilent           AlertKind = "SILENT"
	AlertClipping         AlertKind = "CLIPPING"
	AlertCCError          AlertKind = "CC_ERROR"
	AlertPCRJitter        AlertKind = "PCR_JITTER"
	AlertBitrateAbnormal  AlertKind = "BITRATE_ABNORMAL"
	AlertMosaic           AlertKind = "MOSAIC"
	AlertAudioStutter     AlertKind = "AUDIO_STUTTER"
	AlertOffline          AlertKind = "OFFLINE"
)

// alertSeverities is the fixed severity table from the data model: the three
// video/audio loss conditions and OFFLINE are CRITICAL, the rest WARNING.
var alertSeverities = map[AlertKind]AlertSeverity{
	AlertBlackScreen:     SeverityCritical,
	AlertFrozen:          SeverityCritical,
	AlertSilent:          SeverityCritical,
	AlertOffline:         SeverityCritical,
	AlertClipping:        SeverityWarning,
	AlertCCError:         SeverityWarning,
	AlertPCRJitter:       SeverityWarning,
	AlertBitrateAbnormal: SeverityWarning,
	AlertMosaic:          SeverityWarning,
	AlertAudioStutter:    SeverityWarning,
}

// SeverityOf returns the fixed severity for an alert kind.
func SeverityOf(kind AlertKind) AlertSeverity {
	if sev, ok := alertSeverities[kind]; ok {
		return sev
	}
	return SeverityWarning
}

// Alert is a persisted fault event for one channel, one alert type at a time.
type Alert struct {
	AutoBaseModel
	ChannelID     string      `gorm:"column:channel_id;index:idx_alerts_channel_started" json:"channel_id"`
	ChannelName   string      `gorm:"column:channel_name" json:"channel_name"`
	AlertType     AlertKind   `gorm:"column:alert_type" json:"alert_type"`
	Severity      AlertSeverity `gorm:"column:severity" json:"severity"`
	Status        AlertStatus `gorm:"column:status;default:ACTIVE;index:idx_alerts_status_started" json:"status"`
	Message       string      `gorm:"column:message" json:"message,omitempty"`
	StartedAt     Time        `gorm:"column:started_at;index:idx_alerts_channel_started;index:idx_alerts_status_started" json:"started_at"`
	ResolvedAt    *Time       `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	AckAt         *Time       `gorm:"column:ack_at" json:"ack_at,omitempty"`
	ThumbnailPath string      `gorm:"column:thumbnail_path" json:"thumbnail_path,omitempty"`
}

// TableName returns the table name for Alert.
func (Alert) TableName() string {
	return "alerts"
}

// AlertSuppression records a per-channel/alert-type window during which the
// alert manager must evaluate but not upsert or publish a condition.
type AlertSuppression struct {
	ChannelID       string  `gorm:"column:channel_id;primarykey" json:"channel_id"`
	AlertType       AlertKind `gorm:"column:alert_type;primarykey" json:"alert_type"`
	SuppressedUntil float64 `gorm:"column:suppressed_until" json:"suppressed_until"`
}

// TableName returns the table name for AlertSuppression.
func (AlertSuppression) TableName() string {
	return "alert_suppression"
}
