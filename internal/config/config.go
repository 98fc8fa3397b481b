// Package config provides configuration management for iptvprobe using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultWorkerCount        = 4
	defaultChannelsPerWorker  = 25
	defaultUDPTimeoutSec      = 2 * time.Second
	defaultFrameSampleSec     = 500 * time.Millisecond
	defaultInfluxBatchSize    = 100
	defaultInfluxFlushMillis  = 5 * time.Second
	defaultHotStateTTL        = 30 * time.Second
	defaultWorkerHealthPeriod = 30 * time.Second

	defaultThumbnailWidth   = 320
	defaultThumbnailHeight  = 180
	defaultThumbnailQuality = 80

	defaultBlackLumaThreshold    = 20.0
	defaultFreezeMSEThreshold    = 2.0
	defaultFreezeDurationSec     = 5 * time.Second
	defaultMosaicDurationSec     = 5 * time.Second
	defaultMosaicCorruptRatio    = 0.15
	defaultMosaicLowVarThreshold = 8.0
	defaultMosaicHighVarThresh   = 6000.0

	defaultClipThreshold      = 0.98
	defaultClipRatioThreshold = 0.01
	defaultSilenceRMS         = 0.01
	defaultSilenceDurationSec = 3 * time.Second
	defaultStutterPTSRatio    = 2.5
	defaultStutterWindowSec   = 10 * time.Second
	defaultStutterRateThresh  = 3

	defaultBitrateWindowSec = 5 * time.Second
)

// Config holds all configuration for the probe process.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Influx    InfluxConfig    `mapstructure:"influx"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Analyzers AnalyzersConfig `mapstructure:"analyzers"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// StorageConfig holds thumbnail and scratch-file storage configuration.
type StorageConfig struct {
	ThumbnailDir     string `mapstructure:"thumbnail_dir"`
	ThumbnailWidth   int    `mapstructure:"thumbnail_width"`
	ThumbnailHeight  int    `mapstructure:"thumbnail_height"`
	ThumbnailQuality int    `mapstructure:"thumbnail_quality"`
}

// RedisConfig holds hot-state KV store connection configuration.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

// InfluxConfig holds time-series sink connection configuration.
type InfluxConfig struct {
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Org           string        `mapstructure:"org"`
	Bucket        string        `mapstructure:"bucket"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// FFmpegConfig holds FFmpeg binary configuration used for periodic frame decode.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// ProbeConfig holds operational knobs for the probe pipeline and supervisor.
type ProbeConfig struct {
	WorkerCount           int           `mapstructure:"worker_count"`       // informational only; logged at startup, not used to size worker groups
	ChannelsPerWorker     int           `mapstructure:"channels_per_worker"` // group size used to shard enabled channels across worker groups
	DecodePoolSize        int           `mapstructure:"decode_pool_size"`
	UDPTimeout            time.Duration `mapstructure:"udp_timeout"`
	FrameSampleInterval   time.Duration `mapstructure:"frame_sample_interval"`
	BitrateWindow         time.Duration `mapstructure:"bitrate_window"`
	WorkerHealthInterval  time.Duration `mapstructure:"worker_health_interval"`
	RollingBufferCapBytes int           `mapstructure:"rolling_buffer_cap_bytes"`
}

// AnalyzersConfig holds every threshold named by the video/audio analyzers.
type AnalyzersConfig struct {
	BlackLumaThreshold    float64       `mapstructure:"black_luma_threshold"`
	FreezeMSEThreshold    float64       `mapstructure:"freeze_mse_threshold"`
	FreezeDuration        time.Duration `mapstructure:"freeze_duration"`
	MosaicDuration        time.Duration `mapstructure:"mosaic_duration"`
	MosaicCorruptRatio    float64       `mapstructure:"mosaic_corrupt_ratio_threshold"`
	MosaicLowVarThreshold float64       `mapstructure:"mosaic_low_var_threshold"`
	MosaicHighVarThresh   float64       `mapstructure:"mosaic_high_var_threshold"`

	ClipThreshold      float64       `mapstructure:"clip_threshold"`
	ClipRatioThreshold float64       `mapstructure:"clip_ratio_threshold"`
	SilenceRMS         float64       `mapstructure:"silence_rms_threshold"`
	SilenceDuration    time.Duration `mapstructure:"silence_duration"`
	StutterPTSRatio    float64       `mapstructure:"stutter_pts_ratio"`
	StutterWindow      time.Duration `mapstructure:"stutter_window"`
	StutterRateThresh  int           `mapstructure:"stutter_rate_threshold"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with IPTVPROBE_ and use underscores for nesting.
// Example: IPTVPROBE_PROBE_WORKER_COUNT=8.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/iptvprobe")
		v.AddConfigPath("$HOME/.iptvprobe")
	}

	v.SetEnvPrefix("IPTVPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "iptvprobe.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("storage.thumbnail_dir", "./data/thumbnails")
	v.SetDefault("storage.thumbnail_width", defaultThumbnailWidth)
	v.SetDefault("storage.thumbnail_height", defaultThumbnailHeight)
	v.SetDefault("storage.thumbnail_quality", defaultThumbnailQuality)

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.state_ttl", defaultHotStateTTL)

	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.org", "iptv")
	v.SetDefault("influx.bucket", "metrics")
	v.SetDefault("influx.batch_size", defaultInfluxBatchSize)
	v.SetDefault("influx.flush_interval", defaultInfluxFlushMillis)

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	v.SetDefault("probe.worker_count", defaultWorkerCount)
	v.SetDefault("probe.channels_per_worker", defaultChannelsPerWorker)
	v.SetDefault("probe.decode_pool_size", 4)
	v.SetDefault("probe.udp_timeout", defaultUDPTimeoutSec)
	v.SetDefault("probe.frame_sample_interval", defaultFrameSampleSec)
	v.SetDefault("probe.bitrate_window", defaultBitrateWindowSec)
	v.SetDefault("probe.worker_health_interval", defaultWorkerHealthPeriod)
	v.SetDefault("probe.rolling_buffer_cap_bytes", 64*1024)

	v.SetDefault("analyzers.black_luma_threshold", defaultBlackLumaThreshold)
	v.SetDefault("analyzers.freeze_mse_threshold", defaultFreezeMSEThreshold)
	v.SetDefault("analyzers.freeze_duration", defaultFreezeDurationSec)
	v.SetDefault("analyzers.mosaic_duration", defaultMosaicDurationSec)
	v.SetDefault("analyzers.mosaic_corrupt_ratio_threshold", defaultMosaicCorruptRatio)
	v.SetDefault("analyzers.mosaic_low_var_threshold", defaultMosaicLowVarThreshold)
	v.SetDefault("analyzers.mosaic_high_var_threshold", defaultMosaicHighVarThresh)

	v.SetDefault("analyzers.clip_threshold", defaultClipThreshold)
	v.SetDefault("analyzers.clip_ratio_threshold", defaultClipRatioThreshold)
	v.SetDefault("analyzers.silence_rms_threshold", defaultSilenceRMS)
	v.SetDefault("analyzers.silence_duration", defaultSilenceDurationSec)
	v.SetDefault("analyzers.stutter_pts_ratio", defaultStutterPTSRatio)
	v.SetDefault("analyzers.stutter_window", defaultStutterWindowSec)
	v.SetDefault("analyzers.stutter_rate_threshold", defaultStutterRateThresh)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Probe.WorkerCount < 1 {
		return fmt.Errorf("probe.worker_count must be at least 1")
	}
	if c.Probe.ChannelsPerWorker < 1 {
		return fmt.Errorf("probe.channels_per_worker must be at least 1")
	}
	if c.Storage.ThumbnailDir == "" {
		return fmt.Errorf("storage.thumbnail_dir is required")
	}

	return nil
}
