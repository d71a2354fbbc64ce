// Package config loads the deployment configuration of the SRC manager and
// its host/sink collaborators from YAML, an optional .env file and SSRC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/convert"
)

// Defaults for the settings that are not part of srcmanager.Config.
const (
	DefaultLogLevel          = "info"
	DefaultConverter         = string(convert.KindCubic)
	DefaultTelemetryAddr     = "127.0.0.1:8090"
	DefaultTelemetryInterval = 250 * time.Millisecond
	DefaultFramesPerBuffer   = 256
	DefaultConfigFile        = "srcman.yaml"
	DefaultEnvFile           = ".env"

	envPrefix = "SSRC_"
)

// File is the on-disk configuration.
type File struct {
	LogLevel  string          `yaml:"log_level"` // logrus level name
	SRC       SRCConfig       `yaml:"src"`       // Manager and converter settings
	Telemetry TelemetryConfig `yaml:"telemetry"` // WebSocket stats broadcast
	Sink      SinkConfig      `yaml:"sink"`      // Output consumer
}

// SRCConfig mirrors srcmanager.Config plus converter settings.
type SRCConfig struct {
	Channels       int    `yaml:"channels"`
	Instances      int    `yaml:"instances"`
	InSamples      int    `yaml:"in_samples"`
	RatioMax       int    `yaml:"ratio_max"`
	Dither         bool   `yaml:"dither"`
	FIFOMultiplier int    `yaml:"fifo_multiplier"`
	InputRate      int    `yaml:"input_rate"`
	OutputRate     int    `yaml:"output_rate"`
	SettleTicks    int    `yaml:"settle_ticks"` // Silent ticks after a rate change
	Converter      string `yaml:"converter"`    // "linear" or "cubic"
}

// TelemetryConfig controls the stats hub.
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`     // Listen address for /ws
	Interval time.Duration `yaml:"interval"` // Time between stats broadcasts
}

// SinkConfig tunes the output consumer: the WAV writer for convert and the
// PortAudio stream for play.
type SinkConfig struct {
	FramesPerBuffer int `yaml:"frames_per_buffer"` // Frames pulled per channel per callback
	Device          int `yaml:"device"`            // PortAudio device index, -1 for default
}

// Default returns the built-in configuration.
func Default() *File {
	mc := srcmanager.DefaultConfig()
	return &File{
		LogLevel: DefaultLogLevel,
		SRC: SRCConfig{
			Channels:       mc.Channels,
			Instances:      mc.Instances,
			InSamples:      mc.InSamples,
			RatioMax:       mc.RatioMax,
			Dither:         mc.Dither,
			FIFOMultiplier: mc.FIFOMultiplier,
			InputRate:      mc.InputRate,
			OutputRate:     mc.OutputRate,
			SettleTicks:    convert.DefaultSettleTicks,
			Converter:      DefaultConverter,
		},
		Telemetry: TelemetryConfig{
			Addr:     DefaultTelemetryAddr,
			Interval: DefaultTelemetryInterval,
		},
		Sink: SinkConfig{
			FramesPerBuffer: DefaultFramesPerBuffer,
			Device:          -1,
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then the YAML
// file at path (or DefaultConfigFile if path is empty and it exists), then
// variables from a .env file in the working directory, then SSRC_*
// variables from the process environment. The result is validated.
func LoadConfig(path string) (*File, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	dotenv, err := godotenv.Read(DefaultEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", DefaultEnvFile, err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnvOverrides(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the whole file, including the manager configuration.
func (f *File) Validate() error {
	if _, err := logrus.ParseLevel(f.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	mc := f.ManagerConfig()
	if err := mc.Validate(); err != nil {
		return err
	}

	if _, err := convert.ParseKind(f.SRC.Converter); err != nil {
		return fmt.Errorf("src.converter: %w", err)
	}
	if f.SRC.SettleTicks < 0 {
		return fmt.Errorf("src.settle_ticks must not be negative")
	}

	if f.Telemetry.Enabled {
		if f.Telemetry.Addr == "" {
			return fmt.Errorf("telemetry.addr must be set when telemetry is enabled")
		}
		if f.Telemetry.Interval <= 0 {
			return fmt.Errorf("telemetry.interval must be positive when telemetry is enabled")
		}
	}

	if f.Sink.FramesPerBuffer < 1 {
		return fmt.Errorf("sink.frames_per_buffer must be positive")
	}

	return nil
}

// ManagerConfig returns the srcmanager.Config described by the file.
func (f *File) ManagerConfig() srcmanager.Config {
	return srcmanager.Config{
		Channels:       f.SRC.Channels,
		Instances:      f.SRC.Instances,
		InSamples:      f.SRC.InSamples,
		RatioMax:       f.SRC.RatioMax,
		Dither:         f.SRC.Dither,
		FIFOMultiplier: f.SRC.FIFOMultiplier,
		InputRate:      f.SRC.InputRate,
		OutputRate:     f.SRC.OutputRate,
	}
}

// ConverterKind returns the parsed converter kind. It falls back to cubic
// for a file that has not been validated.
func (f *File) ConverterKind() convert.Kind {
	k, err := convert.ParseKind(f.SRC.Converter)
	if err != nil {
		return convert.KindCubic
	}
	return k
}

// Level returns the parsed log level, or Info if it does not parse.
func (f *File) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(f.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// YAML renders the configuration as a YAML document.
func (f *File) YAML() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *File) applyEnvOverrides(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"CHANNELS":          &f.SRC.Channels,
		"INSTANCES":         &f.SRC.Instances,
		"IN_SAMPLES":        &f.SRC.InSamples,
		"RATIO_MAX":         &f.SRC.RatioMax,
		"FIFO_MULTIPLIER":   &f.SRC.FIFOMultiplier,
		"INPUT_RATE":        &f.SRC.InputRate,
		"OUTPUT_RATE":       &f.SRC.OutputRate,
		"SETTLE_TICKS":      &f.SRC.SettleTicks,
		"FRAMES_PER_BUFFER": &f.Sink.FramesPerBuffer,
		"DEVICE":            &f.Sink.Device,
	}
	for name, dst := range ints {
		val, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
		logrus.WithField("key", envPrefix+name).Debug("configuration overridden from environment")
	}

	bools := map[string]*bool{
		"DITHER":            &f.SRC.Dither,
		"TELEMETRY_ENABLED": &f.Telemetry.Enabled,
	}
	for name, dst := range bools {
		val, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b
		logrus.WithField("key", envPrefix+name).Debug("configuration overridden from environment")
	}

	strs := map[string]*string{
		"LOG_LEVEL":      &f.LogLevel,
		"CONVERTER":      &f.SRC.Converter,
		"TELEMETRY_ADDR": &f.Telemetry.Addr,
	}
	for name, dst := range strs {
		if val, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(val)
			logrus.WithField("key", envPrefix+name).Debug("configuration overridden from environment")
		}
	}

	if val, ok := lookup(envPrefix + "TELEMETRY_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%sTELEMETRY_INTERVAL: %w", envPrefix, err)
		}
		f.Telemetry.Interval = d
	}

	return nil
}
