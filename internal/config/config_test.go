package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "iptvprobe.db", cfg.Database.DSN)
	assert.Equal(t, defaultMaxOpenConns, cfg.Database.MaxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, cfg.Database.MaxIdleConns)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "./data/thumbnails", cfg.Storage.ThumbnailDir)
	assert.Equal(t, defaultThumbnailWidth, cfg.Storage.ThumbnailWidth)
	assert.Equal(t, defaultThumbnailHeight, cfg.Storage.ThumbnailHeight)
	assert.Equal(t, defaultThumbnailQuality, cfg.Storage.ThumbnailQuality)

	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, defaultHotStateTTL, cfg.Redis.StateTTL)

	assert.Equal(t, "http://localhost:8086", cfg.Influx.URL)
	assert.Equal(t, "iptv", cfg.Influx.Org)
	assert.Equal(t, "metrics", cfg.Influx.Bucket)
	assert.Equal(t, defaultInfluxBatchSize, cfg.Influx.BatchSize)
	assert.Equal(t, defaultInfluxFlushMillis, cfg.Influx.FlushInterval)

	assert.Equal(t, defaultWorkerCount, cfg.Probe.WorkerCount)
	assert.Equal(t, defaultChannelsPerWorker, cfg.Probe.ChannelsPerWorker)
	assert.Equal(t, defaultUDPTimeoutSec, cfg.Probe.UDPTimeout)
	assert.Equal(t, defaultFrameSampleSec, cfg.Probe.FrameSampleInterval)
	assert.Equal(t, defaultWorkerHealthPeriod, cfg.Probe.WorkerHealthInterval)

	assert.Equal(t, defaultBlackLumaThreshold, cfg.Analyzers.BlackLumaThreshold)
	assert.Equal(t, defaultFreezeMSEThreshold, cfg.Analyzers.FreezeMSEThreshold)
	assert.Equal(t, defaultFreezeDurationSec, cfg.Analyzers.FreezeDuration)
	assert.Equal(t, defaultMosaicDurationSec, cfg.Analyzers.MosaicDuration)
	assert.Equal(t, defaultSilenceDurationSec, cfg.Analyzers.SilenceDuration)
	assert.Equal(t, defaultStutterRateThresh, cfg.Analyzers.StutterRateThresh)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: postgres
  dsn: "postgres://localhost/iptvprobe"
probe:
  worker_count: 8
  channels_per_worker: 50
analyzers:
  black_luma_threshold: 15.0
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/iptvprobe", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Probe.WorkerCount)
	assert.Equal(t, 50, cfg.Probe.ChannelsPerWorker)
	assert.Equal(t, 15.0, cfg.Analyzers.BlackLumaThreshold)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IPTVPROBE_PROBE_WORKER_COUNT", "12")
	t.Setenv("IPTVPROBE_DATABASE_DRIVER", "mysql")
	t.Setenv("IPTVPROBE_DATABASE_DSN", "user:pass@/iptvprobe")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Probe.WorkerCount)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "user:pass@/iptvprobe", cfg.Database.DSN)
}

func TestValidate_InvalidDriver(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Database.Driver = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_WorkerCountTooLow(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Probe.WorkerCount = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}

func TestValidate_MissingThumbnailDir(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Storage.ThumbnailDir = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thumbnail_dir")
}

func TestSetDefaults_AllFieldsPopulated(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.RFC3339, cfg.Logging.TimeFormat)
}
