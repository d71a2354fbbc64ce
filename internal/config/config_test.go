package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/convert"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// inEmptyDir runs the test from a fresh directory so no stray srcman.yaml
// or .env is picked up.
func inEmptyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	inEmptyDir(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, srcmanager.DefaultConfig(), cfg.ManagerConfig())
	assert.Equal(t, convert.KindCubic, cfg.ConverterKind())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, DefaultFramesPerBuffer, cfg.Sink.FramesPerBuffer)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	dir := inEmptyDir(t)
	path := writeTempFile(t, dir, "custom.yaml", `
log_level: debug
src:
  channels: 8
  instances: 4
  in_samples: 16
  dither: true
  input_rate: 44100
  output_rate: 96000
  converter: linear
telemetry:
  enabled: true
  interval: 100ms
sink:
  frames_per_buffer: 512
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	mc := cfg.ManagerConfig()
	assert.Equal(t, 8, mc.Channels)
	assert.Equal(t, 4, mc.Instances)
	assert.Equal(t, 16, mc.InSamples)
	assert.True(t, mc.Dither)
	assert.Equal(t, srcmanager.RatePair{Input: 44100, Output: 96000}, mc.StartRates())
	assert.Equal(t, srcmanager.DefaultRatioMax, mc.RatioMax, "unset keys keep defaults")

	assert.Equal(t, convert.KindLinear, cfg.ConverterKind())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, 100*time.Millisecond, cfg.Telemetry.Interval)
	assert.Equal(t, DefaultTelemetryAddr, cfg.Telemetry.Addr)
	assert.Equal(t, 512, cfg.Sink.FramesPerBuffer)
	assert.Equal(t, -1, cfg.Sink.Device, "unset sink keys keep defaults")
}

func TestLoadConfig_DefaultFileIsPickedUp(t *testing.T) {
	dir := inEmptyDir(t)
	writeTempFile(t, dir, DefaultConfigFile, "src:\n  fifo_multiplier: 3\n")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SRC.FIFOMultiplier)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	dir := inEmptyDir(t)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")

	bad := writeTempFile(t, dir, "bad.yaml", ":\n:bad")
	_, err = LoadConfig(bad)
	require.ErrorContains(t, err, "failed to parse config file")

	uneven := writeTempFile(t, dir, "uneven.yaml", "src:\n  channels: 3\n")
	_, err = LoadConfig(uneven)
	require.ErrorIs(t, err, srcmanager.ErrConfiguration)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("SSRC_CHANNELS", "4")
	t.Setenv("SSRC_INSTANCES", "4")
	t.Setenv("SSRC_DITHER", "true")
	t.Setenv("SSRC_OUTPUT_RATE", "192000")
	t.Setenv("SSRC_CONVERTER", "linear")
	t.Setenv("SSRC_LOG_LEVEL", "warn")
	t.Setenv("SSRC_TELEMETRY_INTERVAL", "1s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.SRC.Channels)
	assert.Equal(t, 4, cfg.SRC.Instances)
	assert.True(t, cfg.SRC.Dither)
	assert.Equal(t, 192000, cfg.SRC.OutputRate)
	assert.Equal(t, convert.KindLinear, cfg.ConverterKind())
	assert.Equal(t, logrus.WarnLevel, cfg.Level())
	assert.Equal(t, time.Second, cfg.Telemetry.Interval)
}

func TestLoadConfig_EnvOverridesBadValue(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("SSRC_IN_SAMPLES", "four")

	_, err := LoadConfig("")
	require.ErrorContains(t, err, "SSRC_IN_SAMPLES")
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := inEmptyDir(t)
	writeTempFile(t, dir, DefaultEnvFile, "SSRC_INPUT_RATE=88200\nSSRC_SETTLE_TICKS=5\n")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 88200, cfg.SRC.InputRate)
	assert.Equal(t, 5, cfg.SRC.SettleTicks)

	// The process environment wins over .env.
	t.Setenv("SSRC_INPUT_RATE", "96000")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 96000, cfg.SRC.InputRate)
}

func TestFile_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*File)
	}{
		{"log level", func(f *File) { f.LogLevel = "chatty" }},
		{"converter", func(f *File) { f.SRC.Converter = "sinc" }},
		{"settle ticks", func(f *File) { f.SRC.SettleTicks = -1 }},
		{"telemetry addr", func(f *File) { f.Telemetry.Enabled = true; f.Telemetry.Addr = "" }},
		{"telemetry interval", func(f *File) { f.Telemetry.Enabled = true; f.Telemetry.Interval = 0 }},
		{"frames per buffer", func(f *File) { f.Sink.FramesPerBuffer = 0 }},
		{"manager config", func(f *File) { f.SRC.InSamples = 6 }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Default()
			tt.modify(f)
			require.Error(t, f.Validate())
		})
	}
}

func TestFile_YAMLRoundTrip(t *testing.T) {
	f := Default()
	f.SRC.Dither = true

	data, err := f.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "dither: true")

	var back File
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *f, back)
}
