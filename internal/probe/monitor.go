// Package probe implements the per-channel monitor loop tying together
// the transport-stream demuxer, bitrate estimator, periodic ffmpeg-backed
// decode, the video/audio analyzers, the status evaluator, the alert
// manager, and the hot-state/time-series sinks. Grounded on
// original_source/probe/worker.py's ChannelMonitor.run.
package probe

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jmylchreest/iptvprobe/internal/alertmanager"
	"github.com/jmylchreest/iptvprobe/internal/audioanalyzer"
	"github.com/jmylchreest/iptvprobe/internal/bitrate"
	"github.com/jmylchreest/iptvprobe/internal/config"
	"github.com/jmylchreest/iptvprobe/internal/decode"
	"github.com/jmylchreest/iptvprobe/internal/models"
	"github.com/jmylchreest/iptvprobe/internal/probeerr"
	"github.com/jmylchreest/iptvprobe/internal/sinks/tsdb"
	"github.com/jmylchreest/iptvprobe/internal/status"
	"github.com/jmylchreest/iptvprobe/internal/tsdemux"
	"github.com/jmylchreest/iptvprobe/internal/videoanalyzer"
)

const (
	minChunkBytes   = 1316 // 7 TS packets, original_source's smallest workable decode chunk
	maxDecodeChunk  = 65536
	udpReadBufBytes = 65536
)

// HotStateSink is the subset of the Redis-backed sink a monitor needs.
type HotStateSink interface {
	UpdateChannelStatus(ctx context.Context, metrics models.ChannelMetrics, channelStatus models.ChannelStatus) error
}

// frameAudioExtractor is the subset of *decode.Extractor a Monitor needs,
// narrowed to an interface so tests can verify sample wiring (PTS,
// CorruptFrameRatio) without shelling out to ffmpeg.
type frameAudioExtractor interface {
	ExtractFrame(ctx context.Context, tsData []byte) (image.Image, error)
	ExtractAudio(ctx context.Context, tsData []byte, duration float64) (decode.Sample, error)
}

// Monitor runs the full per-channel sampling loop. One Monitor owns one
// multicast UDP socket and is supervised by internal/supervisor.
type Monitor struct {
	cfg        models.ChannelConfig
	probeCfg   config.ProbeConfig
	ffmpegCfg  config.FFmpegConfig
	storageCfg config.StorageConfig

	tsState    *tsdemux.State
	bitrateEst *bitrate.Estimator
	extractor  frameAudioExtractor
	decodePool *decode.Pool
	videoAnlyz *videoanalyzer.Analyzer
	audioAnlyz *audioanalyzer.Analyzer
	alertMgr   *alertmanager.Manager
	hotSink    HotStateSink
	tsdbSink   *tsdb.Sink

	logger *slog.Logger

	mu        sync.Mutex
	lastFrame videoanalyzer.Result
	lastAudio audioanalyzer.Result
}

// Dependencies bundles the shared, process-wide collaborators a Monitor
// needs beyond its own channel configuration.
type Dependencies struct {
	ProbeConfig   config.ProbeConfig
	FFmpegConfig  config.FFmpegConfig
	StorageConfig config.StorageConfig
	Analyzers     config.AnalyzersConfig
	FFmpegPath    string
	AlertManager  *alertmanager.Manager
	HotStateSink  HotStateSink
	TSDBSink      *tsdb.Sink
	DecodePool    *decode.Pool
	Logger        *slog.Logger
}

// NewMonitor returns a Monitor for one channel, constructing its own
// demuxer/estimator/analyzer state.
func NewMonitor(cfg models.ChannelConfig, deps Dependencies) *Monitor {
	th := videoanalyzer.Thresholds{
		BlackLuma:          deps.Analyzers.BlackLumaThreshold,
		FreezeMSE:          deps.Analyzers.FreezeMSEThreshold,
		FreezeDuration:     deps.Analyzers.FreezeDuration,
		MosaicDuration:     deps.Analyzers.MosaicDuration,
		MosaicCorruptRatio: deps.Analyzers.MosaicCorruptRatio,
		MosaicLowVarThresh: deps.Analyzers.MosaicLowVarThreshold,
		MosaicHighVarThresh: deps.Analyzers.MosaicHighVarThresh,
	}
	at := audioanalyzer.Thresholds{
		ClipThreshold:     deps.Analyzers.ClipThreshold,
		ClipRatioThresh:   deps.Analyzers.ClipRatioThreshold,
		SilenceRMS:        deps.Analyzers.SilenceRMS,
		SilenceDuration:   deps.Analyzers.SilenceDuration,
		StutterPTSRatio:   deps.Analyzers.StutterPTSRatio,
		StutterWindow:     deps.Analyzers.StutterWindow,
		StutterRateThresh: deps.Analyzers.StutterRateThresh,
	}

	return &Monitor{
		cfg:        cfg,
		probeCfg:   deps.ProbeConfig,
		ffmpegCfg:  deps.FFmpegConfig,
		storageCfg: deps.StorageConfig,
		tsState:    tsdemux.NewState(),
		bitrateEst: bitrate.NewEstimator(deps.ProbeConfig.BitrateWindow),
		extractor:  decode.NewExtractor(deps.FFmpegPath, 48000),
		decodePool: deps.DecodePool,
		videoAnlyz: videoanalyzer.New(cfg.ID, deps.StorageConfig.ThumbnailDir, deps.StorageConfig.ThumbnailWidth, deps.StorageConfig.ThumbnailHeight, deps.StorageConfig.ThumbnailQuality, th),
		audioAnlyz: audioanalyzer.New(at),
		alertMgr:   deps.AlertManager,
		hotSink:    deps.HotStateSink,
		tsdbSink:   deps.TSDBSink,
		logger:     deps.Logger.With(slog.String("channel_id", cfg.ID)),
		lastFrame:  videoanalyzer.Result{Brightness: 100},
		lastAudio:  audioanalyzer.Result{RMS: 0.1},
	}
}

// ID satisfies supervisor.Monitor.
func (m *Monitor) ID() string { return m.cfg.ID }

// Run blocks, sampling the channel until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	conn, err := m.joinMulticast()
	if err != nil {
		m.logger.Warn("socket unavailable, retrying", slog.Any("error", err))
		return m.waitAndRetry(ctx)
	}
	defer conn.Close()

	buf := make([]byte, udpReadBufBytes)
	rolling := make([]byte, 0, m.probeCfg.RollingBufferCapBytes)

	lastFrameSample := time.Time{}
	lastMetricsTick := time.Time{}
	ccWindowStart := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeout := m.probeCfg.UDPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))

		n, err := conn.Read(buf)
		now := time.Now()

		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				m.emit(ctx, models.ChannelMetrics{
					ChannelID:   m.cfg.ID,
					ChannelName: m.channelName(),
					IsOffline:   true,
					Timestamp:   now,
				})
				continue
			}
			return fmt.Errorf("reading from socket: %w", err)
		}

		data := append([]byte(nil), buf[:n]...)
		m.tsState.Feed(data, now)
		m.bitrateEst.Update(n, now)
		rolling = append(rolling, data...)
		if len(rolling) > m.probeCfg.RollingBufferCapBytes && m.probeCfg.RollingBufferCapBytes > 0 {
			rolling = rolling[len(rolling)-m.probeCfg.RollingBufferCapBytes:]
		}

		sampleInterval := m.probeCfg.FrameSampleInterval
		if sampleInterval <= 0 {
			sampleInterval = 2 * time.Second
		}
		if now.Sub(lastFrameSample) >= sampleInterval && len(rolling) >= minChunkBytes {
			chunk := rolling
			if len(chunk) > maxDecodeChunk {
				chunk = chunk[:maxDecodeChunk]
			}
			chunkCopy := append([]byte(nil), chunk...)
			rolling = rolling[:0]
			lastFrameSample = now
			m.sampleFrameAndAudio(ctx, chunkCopy, now)
		}

		if now.Sub(lastMetricsTick) >= time.Second {
			elapsed := now.Sub(ccWindowStart).Seconds()
			ccPerSec := 0.0
			if elapsed > 0 {
				ccPerSec = float64(m.tsState.CCErrors) / elapsed
			}
			m.tsState.ResetCCErrors()
			ccWindowStart = now

			m.emit(ctx, m.buildMetrics(now, ccPerSec))
			lastMetricsTick = now
		}
	}
}

func (m *Monitor) channelName() string {
	if name := m.tsState.ServiceName; name != "" {
		return name
	}
	return m.cfg.Name
}

func (m *Monitor) buildMetrics(now time.Time, ccPerSec float64) models.ChannelMetrics {
	m.mu.Lock()
	frame := m.lastFrame
	audio := m.lastAudio
	m.mu.Unlock()

	return models.ChannelMetrics{
		ChannelID:           m.cfg.ID,
		ChannelName:         m.channelName(),
		IsBlack:             frame.IsBlack,
		IsFrozen:            frame.IsFrozen,
		IsMosaic:            frame.IsMosaic,
		MosaicRatio:         frame.MosaicRatio,
		IsSilent:            audio.IsSilent,
		IsClipping:          audio.IsClipping,
		IsStuttering:        audio.IsStuttering,
		StutterCount:        audio.StutterCount,
		CCErrorsPerSec:      ccPerSec,
		PCRJitterMs:         m.tsState.PCRJitterMs,
		BitrateKbps:         m.bitrateEst.KbpsLast,
		ExpectedBitrateKbps: m.cfg.ExpectedBitrateKbps,
		AudioRMS:            audio.RMS,
		VideoBrightness:     frame.Brightness,
		ThumbnailPath:       frame.ThumbnailPath,
		Timestamp:           now,
	}
}

// sampleFrameAndAudio decodes one audio chunk and one frame from data and
// runs both analyzers, submitted through the shared decode pool so a burst
// of due channels can't fork unbounded ffmpeg processes. Audio is decoded
// first so its ffmpeg-reported corrupt-frame ratio (mosaic signal A) can be
// fed into the frame analysis alongside the frame's own block-variance
// signal (signal B), per SPEC_FULL.md §4.D/§4.G.
func (m *Monitor) sampleFrameAndAudio(ctx context.Context, data []byte, now time.Time) {
	err := m.decodePool.Submit(ctx, func() {
		corruptRatio := 0.0
		sample, aerr := m.extractor.ExtractAudio(ctx, data, 0.5)
		if aerr != nil {
			m.logger.Debug("audio extraction failed", slog.Any("error", probeerr.NewDecodeError(m.cfg.ID, aerr)))
		} else {
			corruptRatio = sample.CorruptFrameRatio
			result := m.audioAnlyz.Analyze(sample.AudioSamples, sample.AudioSampleRate, now, sample.AudioPTS, len(sample.AudioSamples))
			m.mu.Lock()
			m.lastAudio = result
			m.mu.Unlock()
		}

		if frame, ferr := m.extractor.ExtractFrame(ctx, data); ferr == nil {
			result := m.videoAnlyz.Analyze(frame, now, corruptRatio)
			m.mu.Lock()
			m.lastFrame = result
			m.mu.Unlock()
		} else {
			m.logger.Debug("frame extraction failed", slog.Any("error", probeerr.NewDecodeError(m.cfg.ID, ferr)))
		}
	})
	if err != nil {
		m.logger.Debug("decode submission skipped", slog.Any("error", err))
	}
}

// emit drives the status evaluation and fan-out to the alert manager and
// sinks for one metrics sample.
func (m *Monitor) emit(ctx context.Context, metrics models.ChannelMetrics) {
	channelStatus := status.Evaluate(metrics)

	if m.alertMgr != nil {
		m.alertMgr.Handle(ctx, metrics, channelStatus)
	}
	if m.hotSink != nil {
		if err := m.hotSink.UpdateChannelStatus(ctx, metrics, channelStatus); err != nil {
			m.logger.Debug("hot-state write failed", slog.Any("error", err))
		}
	}
	if m.tsdbSink != nil {
		m.tsdbSink.WriteMetrics(ctx, metrics, channelStatus)
	}
}

func (m *Monitor) joinMulticast() (*net.UDPConn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(m.cfg.MulticastIP), Port: m.cfg.MulticastPort}
	iface, err := defaultMulticastInterface()
	if err != nil {
		return nil, probeerr.NewSocketError(m.cfg.ID, addr.String(), fmt.Errorf("%w: %v", probeerr.ErrMulticastJoinFailed, err))
	}
	conn, err := net.ListenMulticastUDP("udp4", iface, addr)
	if err != nil {
		return nil, probeerr.NewSocketError(m.cfg.ID, addr.String(), fmt.Errorf("%w: %v", probeerr.ErrSocketBindFailed, err))
	}
	conn.SetReadBuffer(4 * 1024 * 1024)
	return conn, nil
}

func defaultMulticastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast != 0 && iface.Flags&net.FlagUp != 0 {
			return &iface, nil
		}
	}
	return nil, nil
}

func (m *Monitor) waitAndRetry(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("retry bind for channel %s", m.cfg.ID)
	}
}
