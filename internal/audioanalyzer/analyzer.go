// Package audioanalyzer derives clip/silence/stutter signals from decoded
// PCM audio chunks, per spec.md §4.E.
package audioanalyzer

import (
	"math"
	"time"
)

const epsilon = 1e-12

// Thresholds groups every tunable the analyzer needs, sourced from
// internal/config.AnalyzersConfig.
type Thresholds struct {
	ClipThreshold     float64
	ClipRatioThresh   float64
	SilenceRMS        float64
	SilenceDuration   time.Duration
	StutterPTSRatio   float64
	StutterWindow     time.Duration
	StutterRateThresh int
}

// Result is one chunk's analysis output.
type Result struct {
	RMS          float64
	ClipRatio    float64
	IsClipping   bool
	IsSilent     bool
	IsStuttering bool
	StutterCount int
}

// Analyzer holds per-channel silence/stutter hysteresis state.
type Analyzer struct {
	thresholds Thresholds

	silenceStart time.Time
	haveSilence  bool

	havePTS       bool
	lastPTS       float64
	stutterEvents []time.Time
}

// New returns an Analyzer for one channel.
func New(th Thresholds) *Analyzer {
	return &Analyzer{thresholds: th}
}

// Int16ToFloat32 normalizes signed 16-bit PCM samples to float32 range
// [-1, 1], matching the Python original's `/32768.0` normalization.
func Int16ToFloat32(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// Analyze processes one mono float chunk sampled at sr Hz, with wall-clock
// ts and the chunk's presentation timestamp pts (seconds, as decoded).
// sampleCount is the number of samples the chunk represents (usually
// len(samples), but decoders may report a different count for partial
// chunks).
func (a *Analyzer) Analyze(samples []float64, sr int, ts time.Time, pts float64, sampleCount int) Result {
	rms := rootMeanSquare(samples)
	clipRatio := clipRatio(samples, a.thresholds.ClipThreshold)

	isSilentFrame := rms < a.thresholds.SilenceRMS
	isSilent := false
	if isSilentFrame {
		if !a.haveSilence {
			a.silenceStart = ts
			a.haveSilence = true
		} else if ts.Sub(a.silenceStart) > a.thresholds.SilenceDuration {
			isSilent = true
		}
	} else {
		a.haveSilence = false
	}

	if a.havePTS {
		actualInterval := pts - a.lastPTS
		var expectedInterval float64
		if sr > 0 {
			expectedInterval = float64(sampleCount) / float64(sr)
		}
		isStutterEvent := actualInterval < 0 ||
			(expectedInterval > 0 && actualInterval > expectedInterval*a.thresholds.StutterPTSRatio)
		if isStutterEvent {
			a.stutterEvents = append(a.stutterEvents, ts)
		}
	}
	a.havePTS = true
	a.lastPTS = pts

	cutoff := ts.Add(-a.thresholds.StutterWindow)
	kept := a.stutterEvents[:0]
	for _, evt := range a.stutterEvents {
		if !evt.Before(cutoff) {
			kept = append(kept, evt)
		}
	}
	a.stutterEvents = kept

	return Result{
		RMS:          rms,
		ClipRatio:    clipRatio,
		IsClipping:   clipRatio > a.thresholds.ClipRatioThresh,
		IsSilent:     isSilent,
		IsStuttering: len(a.stutterEvents) >= a.thresholds.StutterRateThresh,
		StutterCount: len(a.stutterEvents),
	}
}

func rootMeanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Sqrt(epsilon)
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum/float64(len(samples)) + epsilon)
}

func clipRatio(samples []float64, threshold float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	clipped := 0
	for _, s := range samples {
		if math.Abs(s) >= threshold {
			clipped++
		}
	}
	return float64(clipped) / float64(len(samples))
}
