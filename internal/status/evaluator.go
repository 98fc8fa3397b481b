// Package status implements the pure status-evaluation and active-alert
// predicates that drive alert transitions, per spec.md §4.F.
package status

import (
	"math"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

const (
	ccErrorsPerSecThreshold = 5.0
	pcrJitterMsThreshold    = 40.0
	bitrateDeviationRatio   = 0.3
)

// bitrateAbnormal reports whether the measured bitrate deviates from the
// expected bitrate by more than bitrateDeviationRatio. An unknown expected
// bitrate (<=0) never triggers the predicate.
func bitrateAbnormal(m models.ChannelMetrics) bool {
	if m.ExpectedBitrateKbps <= 0 {
		return false
	}
	return math.Abs(m.BitrateKbps-m.ExpectedBitrateKbps)/m.ExpectedBitrateKbps > bitrateDeviationRatio
}

func ccErrorAbnormal(m models.ChannelMetrics) bool { return m.CCErrorsPerSec > ccErrorsPerSecThreshold }
func pcrJitterAbnormal(m models.ChannelMetrics) bool { return m.PCRJitterMs > pcrJitterMsThreshold }

// Evaluate implements the fixed precedence from spec.md §4.F: OFFLINE beats
// ALARM beats WARNING beats NORMAL.
func Evaluate(m models.ChannelMetrics) models.ChannelStatus {
	if m.IsOffline {
		return models.StatusOffline
	}
	if m.IsBlack || m.IsFrozen || m.IsSilent {
		return models.StatusAlarm
	}
	warning := m.IsClipping ||
		ccErrorAbnormal(m) ||
		pcrJitterAbnormal(m) ||
		bitrateAbnormal(m) ||
		m.IsMosaic ||
		m.IsStuttering
	if warning {
		return models.StatusWarning
	}
	return models.StatusNormal
}

// ActiveAlerts returns every AlertKind whose predicate is currently true.
// OFFLINE suppresses emission of every other kind, per spec.md §4.F/§8
// invariant 6.
func ActiveAlerts(m models.ChannelMetrics) []models.AlertKind {
	if m.IsOffline {
		return []models.AlertKind{models.AlertOffline}
	}

	var kinds []models.AlertKind
	if m.IsBlack {
		kinds = append(kinds, models.AlertBlackScreen)
	}
	if m.IsFrozen {
		kinds = append(kinds, models.AlertFrozen)
	}
	if m.IsSilent {
		kinds = append(kinds, models.AlertSilent)
	}
	if m.IsClipping {
		kinds = append(kinds, models.AlertClipping)
	}
	if ccErrorAbnormal(m) {
		kinds = append(kinds, models.AlertCCError)
	}
	if pcrJitterAbnormal(m) {
		kinds = append(kinds, models.AlertPCRJitter)
	}
	if bitrateAbnormal(m) {
		kinds = append(kinds, models.AlertBitrateAbnormal)
	}
	if m.IsMosaic {
		kinds = append(kinds, models.AlertMosaic)
	}
	if m.IsStuttering {
		kinds = append(kinds, models.AlertAudioStutter)
	}
	return kinds
}
