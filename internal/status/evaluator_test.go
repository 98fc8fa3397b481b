package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/iptvprobe/internal/models"
)

func TestEvaluate_Offline(t *testing.T) {
	assert.Equal(t, models.StatusOffline, Evaluate(models.ChannelMetrics{IsOffline: true, IsBlack: true}))
}

func TestEvaluate_OfflineSuppressesAlarmAndWarning(t *testing.T) {
	m := models.ChannelMetrics{IsOffline: true, IsBlack: true, IsClipping: true}
	alerts := ActiveAlerts(m)
	assert.Equal(t, []models.AlertKind{models.AlertOffline}, alerts)
}

func TestEvaluate_AlarmConditions(t *testing.T) {
	for _, m := range []models.ChannelMetrics{
		{IsBlack: true},
		{IsFrozen: true},
		{IsSilent: true},
	} {
		assert.Equal(t, models.StatusAlarm, Evaluate(m))
	}
}

func TestEvaluate_WarningConditions(t *testing.T) {
	cases := []models.ChannelMetrics{
		{IsClipping: true},
		{CCErrorsPerSec: 5.1},
		{PCRJitterMs: 40.1},
		{ExpectedBitrateKbps: 5000, BitrateKbps: 2000},
		{IsMosaic: true},
		{IsStuttering: true},
	}
	for _, m := range cases {
		assert.Equal(t, models.StatusWarning, Evaluate(m))
	}
}

func TestEvaluate_ThresholdsAreStrictlyGreaterThan(t *testing.T) {
	assert.Equal(t, models.StatusNormal, Evaluate(models.ChannelMetrics{CCErrorsPerSec: 5.0}))
	assert.Equal(t, models.StatusNormal, Evaluate(models.ChannelMetrics{PCRJitterMs: 40.0}))
}

func TestEvaluate_Normal(t *testing.T) {
	assert.Equal(t, models.StatusNormal, Evaluate(models.ChannelMetrics{}))
}

func TestEvaluate_BitrateDeviationScenario(t *testing.T) {
	m := models.ChannelMetrics{ExpectedBitrateKbps: 5000, BitrateKbps: 2000}
	assert.Equal(t, models.StatusWarning, Evaluate(m))
	assert.Contains(t, ActiveAlerts(m), models.AlertBitrateAbnormal)
}

func TestActiveAlerts_MultipleWarnings(t *testing.T) {
	m := models.ChannelMetrics{IsClipping: true, IsMosaic: true, IsStuttering: true}
	alerts := ActiveAlerts(m)
	assert.ElementsMatch(t, []models.AlertKind{models.AlertClipping, models.AlertMosaic, models.AlertAudioStutter}, alerts)
}

func TestActiveAlerts_BitrateIgnoredWhenExpectedUnknown(t *testing.T) {
	m := models.ChannelMetrics{ExpectedBitrateKbps: 0, BitrateKbps: 99999}
	assert.NotContains(t, ActiveAlerts(m), models.AlertBitrateAbnormal)
}
