package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/config"
	"github.com/tphakala/go-audio-srcmanager/internal/convert"
)

func testApp() *app {
	cfg := config.Default()
	cfg.SRC.Converter = string(convert.KindLinear)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return &app{cfg: cfg, log: log}
}

// writeStereoWAV writes frames of a 16-bit stereo ramp at rate.
func writeStereoWAV(t *testing.T, rate, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 0, 2*frames)
	for i := range frames {
		v := (i%200 - 100) * 100
		data = append(data, v, -v)
	}

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseSchedule(t *testing.T) {
	changes, err := parseSchedule([]string{"200:44100", "100: 96000"})
	require.NoError(t, err)
	assert.Equal(t, []rateChange{{tick: 100, hz: 96000}, {tick: 200, hz: 44100}}, changes)

	for _, bad := range []string{"100", "x:48000", "100:fast", "100:32000"} {
		_, err := parseSchedule([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestTickInterval(t *testing.T) {
	mc := srcmanager.DefaultConfig()
	assert.Equal(t, int64(83333), tickInterval(mc).Nanoseconds())
}

func TestRunConvert_Doubling(t *testing.T) {
	a := testApp()
	in := writeStereoWAV(t, 48000, 1000)
	out := filepath.Join(t.TempDir(), "out.wav")

	sum, err := a.runConvert(t.Context(), &convertOptions{input: in, output: out, rate: 96000})
	require.NoError(t, err)

	assert.Equal(t, uint64(250), sum.Ticks)
	assert.Equal(t, uint64(1000), sum.InFrames)
	assert.Equal(t, uint64(2000), sum.OutFrames)
	assert.Zero(t, sum.Overflows)
	assert.Zero(t, sum.Underruns)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 96000, buf.Format.SampleRate)
	assert.Equal(t, uint16(24), dec.BitDepth)
	assert.Len(t, buf.Data, 2*2000)
}

func TestRunConvert_ScheduledRateChange(t *testing.T) {
	a := testApp()
	in := writeStereoWAV(t, 48000, 1000)
	out := filepath.Join(t.TempDir(), "out.wav")

	sum, err := a.runConvert(t.Context(), &convertOptions{
		input:    in,
		output:   out,
		schedule: []string{"100:96000"},
	})
	require.NoError(t, err)

	// 100 ticks at 1:1, two silent settling ticks, 148 ticks at 1:2, and
	// the tail padded up to a whole 20-frame buffer.
	assert.Equal(t, uint64(1), sum.RateChanges)
	assert.Equal(t, uint64(1600), sum.OutFrames)
	assert.Equal(t, uint64(2), sum.Underruns)
}

func TestRunConvert_Errors(t *testing.T) {
	a := testApp()
	out := filepath.Join(t.TempDir(), "out.wav")

	_, err := a.runConvert(t.Context(), &convertOptions{input: "missing.wav", output: out})
	require.Error(t, err)

	in := writeStereoWAV(t, 32000, 16)
	_, err = a.runConvert(t.Context(), &convertOptions{input: in, output: out})
	require.ErrorIs(t, err, srcmanager.ErrInvalidRate)

	in = writeStereoWAV(t, 48000, 16)
	_, err = a.runConvert(t.Context(), &convertOptions{input: in, output: out, schedule: []string{"bad"}})
	require.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "--log-level", "warn"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "log_level: warn")
	assert.Contains(t, stdout.String(), "channels: 2")
}

func TestRootCommand_RejectsBadLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"config", "--log-level", "chatty"})
	require.Error(t, cmd.Execute())
}
