package models

import "time"

// ChannelStatus is the coarse-grained health of a channel for one tick.
type ChannelStatus string

const (
	StatusNormal  ChannelStatus = "NORMAL"
	StatusWarning ChannelStatus = "WARNING"
	StatusAlarm   ChannelStatus = "ALARM"
	StatusOffline ChannelStatus = "OFFLINE"
)

// ChannelMetrics is the value produced once per second by a channel
// monitor's tick and handed to the status evaluator, alert manager, and
// sinks.
type ChannelMetrics struct {
	ChannelID   string
	ChannelName string

	IsOffline     bool
	IsBlack       bool
	IsFrozen      bool
	IsSilent      bool
	IsClipping    bool
	IsMosaic      bool
	MosaicRatio   float64
	IsStuttering  bool
	StutterCount  int

	CCErrorsPerSec      float64
	PCRJitterMs         float64
	BitrateKbps         float64
	ExpectedBitrateKbps float64
	AudioRMS            float64
	VideoBrightness     float64
	ThumbnailPath       string

	Timestamp time.Time
}
