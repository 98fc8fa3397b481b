// Package videoanalyzer derives black/freeze/mosaic signals from decoded
// video frames with hysteresis, and maintains the on-disk thumbnail files
// described in spec.md §6.
package videoanalyzer

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"
)

const blockSize = 16

// Thresholds groups every tunable the analyzer needs, sourced from
// internal/config.AnalyzersConfig.
type Thresholds struct {
	BlackLuma           float64
	FreezeMSE           float64
	FreezeDuration      time.Duration
	MosaicDuration      time.Duration
	MosaicCorruptRatio  float64
	MosaicLowVarThresh  float64
	MosaicHighVarThresh float64
}

// Result is one frame's analysis output, folded into models.ChannelMetrics
// by the channel monitor.
type Result struct {
	Brightness    float64
	IsBlackFrame  bool // instantaneous signal, before hysteresis
	IsBlack       bool // hysteresis-gated
	IsFrozen      bool
	IsMosaic      bool
	MosaicRatio   float64
	ThumbnailPath string
}

// Analyzer holds the per-channel state (previous frame, hysteresis clocks)
// needed to turn single frames into hysteresis-gated alarm signals.
type Analyzer struct {
	channelID    string
	thumbnailDir string
	width        int
	height       int
	quality      int
	thresholds   Thresholds

	lastGray   []float64
	lastW      int
	lastH      int
	freezeSeen time.Time
	blackSeen  time.Time
	mosaicSeen time.Time
}

// New returns an Analyzer for one channel. thumbnailDir is created lazily on
// first thumbnail write.
func New(channelID, thumbnailDir string, width, height, quality int, th Thresholds) *Analyzer {
	return &Analyzer{
		channelID:    channelID,
		thumbnailDir: thumbnailDir,
		width:        width,
		height:       height,
		quality:      quality,
		thresholds:   th,
	}
}

// toGrayLuma converts img to BT.601 luma, returned as a flat row-major slice
// alongside its width/height.
func toGrayLuma(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := make([]float64, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bch, _ := img.At(x, y).RGBA()
			// RGBA() returns 16-bit components; scale down to 8-bit range.
			rf := float64(r >> 8)
			gf := float64(g >> 8)
			bf := float64(bch >> 8)
			gray[i] = 0.299*rf + 0.587*gf + 0.114*bf
			i++
		}
	}
	return gray, w, h
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// mse computes mean squared error between two equal-length slices.
func mse(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float64(len(a))
}

// blockVarianceRatios tiles gray (w x h) into 16x16 blocks and returns the
// fraction of blocks with variance below the low threshold and the fraction
// above the high threshold, per spec.md §4.D mosaic signal B.
func blockVarianceRatios(gray []float64, w, h int, lowThresh, highThresh float64) (lowRatio, highRatio float64) {
	if w == 0 || h == 0 {
		return 0, 0
	}
	total := 0
	low := 0
	high := 0
	for by := 0; by < h; by += blockSize {
		for bx := 0; bx < w; bx += blockSize {
			ey := by + blockSize
			if ey > h {
				ey = h
			}
			ex := bx + blockSize
			if ex > w {
				ex = w
			}
			var vals []float64
			for y := by; y < ey; y++ {
				row := y * w
				vals = append(vals, gray[row+bx:row+ex]...)
			}
			m := mean(vals)
			varSum := 0.0
			for _, v := range vals {
				d := v - m
				varSum += d * d
			}
			variance := varSum / float64(len(vals))
			total++
			if variance < lowThresh {
				low++
			}
			if variance > highThresh {
				high++
			}
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(low) / float64(total), float64(high) / float64(total)
}

// Analyze processes one decoded frame at wall-clock ts, folding in an
// externally supplied decoder corrupt-frame ratio (mosaic signal A).
func (a *Analyzer) Analyze(frame image.Image, ts time.Time, corruptRatio float64) Result {
	gray, w, h := toGrayLuma(frame)
	brightness := mean(gray)
	isBlackFrame := brightness < a.thresholds.BlackLuma

	var still bool
	if a.lastGray != nil && a.lastW == w && a.lastH == h {
		m := mse(gray, a.lastGray)
		still = m < a.thresholds.FreezeMSE
	}

	lowRatio, highRatio := blockVarianceRatios(gray, w, h, a.thresholds.MosaicLowVarThresh, a.thresholds.MosaicHighVarThresh)
	blockMosaic := lowRatio > 0.30 || highRatio > 0.20
	mosaicSignal := blockMosaic || corruptRatio > a.thresholds.MosaicCorruptRatio
	mosaicRatio := lowRatio
	if highRatio > mosaicRatio {
		mosaicRatio = highRatio
	}

	res := Result{
		Brightness:   brightness,
		IsBlackFrame: isBlackFrame,
		MosaicRatio:  mosaicRatio,
	}

	res.IsBlack = a.gate(&a.blackSeen, isBlackFrame, a.thresholds.FreezeDuration, ts)
	res.IsFrozen = a.gate(&a.freezeSeen, still, a.thresholds.FreezeDuration, ts)
	res.IsMosaic = a.gate(&a.mosaicSeen, mosaicSignal, a.thresholds.MosaicDuration, ts)

	a.lastGray, a.lastW, a.lastH = gray, w, h

	thumbPath, err := a.saveThumbnails(frame, ts, res.IsBlack || res.IsFrozen || res.IsMosaic)
	if err == nil {
		res.ThumbnailPath = thumbPath
	}
	return res
}

// gate implements the hysteresis rule from spec.md §4.D: a condition is
// reported only after its signal has been continuously true for duration;
// the clock resets the moment the signal goes false.
func (a *Analyzer) gate(seen *time.Time, signal bool, duration time.Duration, ts time.Time) bool {
	if !signal {
		*seen = time.Time{}
		return false
	}
	if seen.IsZero() {
		*seen = ts
		return false
	}
	return ts.Sub(*seen) > duration
}

func (a *Analyzer) saveThumbnails(frame image.Image, ts time.Time, alarm bool) (string, error) {
	if err := os.MkdirAll(a.thumbnailDir, 0o755); err != nil {
		return "", err
	}
	thumb := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), frame, frame.Bounds(), draw.Over, nil)

	latestPath := filepath.Join(a.thumbnailDir, fmt.Sprintf("latest_%s.jpg", a.channelID))
	if err := writeJPEG(latestPath, thumb, a.quality); err != nil {
		return "", err
	}

	if alarm {
		alarmPath := filepath.Join(a.thumbnailDir, fmt.Sprintf("alarm_%s_%d.jpg", a.channelID, ts.Unix()))
		if err := writeJPEG(alarmPath, thumb, 85); err != nil {
			return latestPath, nil
		}
		return alarmPath, nil
	}
	return latestPath, nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}
