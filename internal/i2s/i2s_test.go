package i2s

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/convert"
)

// fakePuller hands out a fixed number of samples per channel.
type fakePuller struct {
	queued [][]float64
	fail   error
}

func (f *fakePuller) PullOutputInto(ch int, dst []float64) (int, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	n := copy(dst, f.queued[ch])
	f.queued[ch] = f.queued[ch][n:]
	if n < len(dst) {
		return n, srcmanager.ErrUnderrun
	}
	return n, nil
}

func TestFillSilence(t *testing.T) {
	buf := []float64{1, 2, 3}
	FillSilence(buf[1:])
	assert.Equal(t, []float64{1, 0, 0}, buf)
}

func TestNewConsumer_Errors(t *testing.T) {
	_, err := NewConsumer(nil, 2, 4)
	require.Error(t, err)
	_, err = NewConsumer(&fakePuller{}, 0, 4)
	require.Error(t, err)
	_, err = NewConsumer(&fakePuller{}, 2, 0)
	require.Error(t, err)
}

func TestConsumer_UnderrunFilledWithSilence(t *testing.T) {
	p := &fakePuller{queued: [][]float64{{0.1, 0.2, 0.3, 0.4}, {0.5}}}
	c, err := NewConsumer(p, 2, 4)
	require.NoError(t, err)

	bufs, err := c.Pull()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, bufs[0])
	assert.Equal(t, []float64{0.5, 0, 0, 0}, bufs[1])

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Pulls)
	assert.Equal(t, uint64(5), stats.Samples)
	assert.Equal(t, uint64(1), stats.Underruns)
	assert.Equal(t, uint64(3), stats.SilenceFills)

	// Nothing left: both channels are all silence.
	bufs, err = c.Pull()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, bufs[0])
	assert.Equal(t, uint64(3), c.Stats().Underruns)
}

func TestConsumer_OtherErrorsAbort(t *testing.T) {
	c, err := NewConsumer(&fakePuller{fail: srcmanager.ErrInvalidChannel}, 1, 4)
	require.NoError(t, err)

	_, err = c.Pull()
	require.ErrorIs(t, err, srcmanager.ErrInvalidChannel)
}

func TestInterleave24(t *testing.T) {
	dst := make([]int, 6)
	interleave24(dst, [][]float64{{0.5, 1.5, -1}, {-0.5, 0, -2}})
	assert.Equal(t, []int{4194304, -4194304, 8388607, 0, -8388607, -8388608}, dst)
}

func TestInterleaveFloat32(t *testing.T) {
	dst := make([]float32, 4)
	interleaveFloat32(dst, [][]float64{{0.25, 0.5}, {-0.25, -0.5}})
	assert.Equal(t, []float32{0.25, -0.25, 0.5, -0.5}, dst)
}

func readWAV(t *testing.T, path string) (*goaudio.IntBuffer, *wav.Decoder) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return buf, dec
}

func TestWAVSink_WritesTwentyFourBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	p := &fakePuller{queued: [][]float64{{0.5, 0.25, 0, 0}, {-0.5, -0.25}}}
	sink, err := NewWAVSink(f, p, 96000, 2, 4)
	require.NoError(t, err)

	require.NoError(t, sink.Drain())
	require.NoError(t, sink.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, uint64(4), sink.Frames())
	assert.Equal(t, uint64(1), sink.Stats().Underruns)

	buf, dec := readWAV(t, path)
	assert.Equal(t, uint16(24), dec.BitDepth)
	assert.Equal(t, 96000, buf.Format.SampleRate)
	assert.Equal(t, []int{4194304, -4194304, 2097152, -2097152, 0, 0, 0, 0}, buf.Data)
}

func TestWAVSink_DrainAvailableWithManager(t *testing.T) {
	m, err := srcmanager.New(srcmanager.DefaultConfig(), convert.NewFactory(convert.KindLinear, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	sink, err := NewWAVSink(f, m, srcmanager.RateDAT, 2, 8)
	require.NoError(t, err)

	block := [][]float64{{0.1, 0.2, 0.3, 0.4}, {-0.1, -0.2, -0.3, -0.4}}
	total := 0
	for range 10 {
		require.NoError(t, m.ProcessTick(block))
		n, err := sink.DrainAvailable(m.Available)
		require.NoError(t, err)
		total += n
	}
	require.NoError(t, sink.Close())
	require.NoError(t, f.Close())

	// 40 samples per channel at 1:1 make five 8-frame buffers.
	assert.Equal(t, 5, total)
	assert.Zero(t, sink.Stats().Underruns)

	buf, _ := readWAV(t, path)
	assert.Len(t, buf.Data, 5*8*2)
}

func TestWAVSink_DrainAvailablePropagatesErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sink, err := NewWAVSink(f, &fakePuller{}, 48000, 1, 4)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = sink.DrainAvailable(func(int) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
}
