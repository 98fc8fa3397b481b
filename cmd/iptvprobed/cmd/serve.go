package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/iptvprobe/internal/alertmanager"
	"github.com/jmylchreest/iptvprobe/internal/config"
	"github.com/jmylchreest/iptvprobe/internal/database"
	"github.com/jmylchreest/iptvprobe/internal/database/migrations"
	"github.com/jmylchreest/iptvprobe/internal/decode"
	"github.com/jmylchreest/iptvprobe/internal/ffmpeg"
	"github.com/jmylchreest/iptvprobe/internal/models"
	"github.com/jmylchreest/iptvprobe/internal/probe"
	"github.com/jmylchreest/iptvprobe/internal/repository"
	"github.com/jmylchreest/iptvprobe/internal/sinks/hotstate"
	"github.com/jmylchreest/iptvprobe/internal/sinks/tsdb"
	"github.com/jmylchreest/iptvprobe/internal/supervisor"
	"github.com/jmylchreest/iptvprobe/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the iptvprobed monitoring supervisor",
	Long: `Start iptvprobed's monitoring supervisor.

Loads the set of enabled channels from the configured SQL store, spawns
one channel monitor per channel, and keeps them running: each monitor
joins its channel's multicast group, demuxes the transport stream,
periodically decodes a frame and audio chunk via ffmpeg, evaluates
status, raises/resolves alerts, and publishes to the hot-state and
time-series sinks.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config-db", "iptvprobe.db", "Config/alert database path (sqlite driver)")
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("config-db"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("config-db") {
		cfg.Database.DSN = viper.GetString("database.dsn")
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	channelRepo := repository.NewChannelConfigRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)
	suppressionRepo := repository.NewAlertSuppressionRepository(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channels, err := channelRepo.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled channels: %w", err)
	}

	enabledIDs := make([]string, len(channels))
	for i, ch := range channels {
		enabledIDs[i] = ch.ID
	}
	resolved, err := alertmanager.SweepStaleAlerts(ctx, alertRepo, enabledIDs)
	if err != nil {
		logger.Warn("startup alert sweep failed", slog.Any("error", err))
	} else if resolved > 0 {
		logger.Info("resolved stale alerts on startup", slog.Int64("count", resolved))
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	hotSink := hotstate.New(redisClient, cfg.Redis.StateTTL)

	var tsdbSink *tsdb.Sink
	if cfg.Influx.URL != "" {
		tsdbSink = tsdb.New(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.BatchSize, cfg.Influx.FlushInterval, logger)
		defer tsdbSink.Close()
	}

	ffmpegPath := cfg.FFmpeg.BinaryPath
	if ffmpegPath == "" {
		detector := ffmpeg.NewBinaryDetector()
		info, derr := detector.Detect(ctx)
		if derr != nil {
			return fmt.Errorf("detecting ffmpeg binary: %w", derr)
		}
		ffmpegPath = info.FFmpegPath
	}

	groups := partitionChannels(channels, cfg.Probe.ChannelsPerWorker)
	if len(groups) == 0 {
		logger.Warn("no enabled channels configured, no worker groups to start")
	}

	healthInterval := cfg.Probe.WorkerHealthInterval
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting iptvprobed supervisor",
		slog.Int("channel_count", len(channels)),
		slog.Int("worker_count", cfg.Probe.WorkerCount),
		slog.Int("worker_group_count", len(groups)),
		slog.Int("channels_per_worker", cfg.Probe.ChannelsPerWorker),
		slog.String("version", version.Version),
	)

	var wg sync.WaitGroup
	for workerID, group := range groups {
		workerLogger := logger.With(slog.Int("worker_id", workerID))
		decodePool := decode.NewPool(cfg.Probe.DecodePoolSize)

		monitors := make([]supervisor.Monitor, 0, len(group))
		for _, ch := range group {
			alertMgr := alertmanager.New(alertRepo, suppressionRepo, hotSink, workerLogger)
			m := probe.NewMonitor(*ch, probe.Dependencies{
				ProbeConfig:   cfg.Probe,
				FFmpegConfig:  cfg.FFmpeg,
				StorageConfig: cfg.Storage,
				Analyzers:     cfg.Analyzers,
				FFmpegPath:    ffmpegPath,
				AlertManager:  alertMgr,
				HotStateSink:  hotSink,
				TSDBSink:      tsdbSink,
				DecodePool:    decodePool,
				Logger:        workerLogger,
			})
			monitors = append(monitors, m)
		}

		workerLogger.Info("starting worker group", slog.Int("channel_count", len(monitors)))
		sup := supervisor.New(monitors, healthInterval, workerLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Run(ctx)
		}()
	}

	wg.Wait()
	logger.Info("supervisor stopped")
	return nil
}

// partitionChannels splits channels into groupSize-sized chunks, one per
// worker group, matching the donor probe's CHANNELS_PER_WORKER chunking
// (original_source/probe/main.py).
func partitionChannels(channels []*models.ChannelConfig, groupSize int) [][]*models.ChannelConfig {
	if groupSize <= 0 {
		groupSize = 25
	}
	var groups [][]*models.ChannelConfig
	for i := 0; i < len(channels); i += groupSize {
		end := i + groupSize
		if end > len(channels) {
			end = len(channels)
		}
		groups = append(groups, channels[i:end])
	}
	return groups
}
