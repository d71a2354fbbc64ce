package i2s

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// I2S word length written by WAVSink.
const (
	SinkBitDepth = 24
	pcmFormat    = 1

	maxInt24 = 8388607.0
	minInt24 = -8388608.0
)

// WAVSink is an offline consumer that writes 24-bit PCM.
type WAVSink struct {
	enc      *wav.Encoder
	consumer *Consumer
	buf      *goaudio.IntBuffer
	frames   uint64
}

// NewWAVSink writes channels of audio at sampleRate to w, pulling frames
// samples per channel from src on every Drain.
func NewWAVSink(w io.WriteSeeker, src Puller, sampleRate, channels, frames int) (*WAVSink, error) {
	c, err := NewConsumer(src, channels, frames)
	if err != nil {
		return nil, err
	}
	return &WAVSink{
		enc:      wav.NewEncoder(w, sampleRate, SinkBitDepth, channels, pcmFormat),
		consumer: c,
		buf: &goaudio.IntBuffer{
			Data:           make([]int, channels*frames),
			Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
			SourceBitDepth: SinkBitDepth,
		},
	}, nil
}

// Drain pulls one buffer and appends it to the file.
func (s *WAVSink) Drain() error {
	bufs, err := s.consumer.Pull()
	if err != nil {
		return err
	}

	interleave24(s.buf.Data, bufs)
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	s.frames += uint64(s.consumer.Frames())
	return nil
}

// DrainAvailable drains whole buffers while avail reports at least one
// buffer's worth of samples on every channel. It returns the number of
// buffers written.
func (s *WAVSink) DrainAvailable(avail func(ch int) (int, error)) (int, error) {
	written := 0
	for {
		for ch := range s.consumer.Channels() {
			n, err := avail(ch)
			if err != nil {
				return written, err
			}
			if n < s.consumer.Frames() {
				return written, nil
			}
		}
		if err := s.Drain(); err != nil {
			return written, err
		}
		written++
	}
}

// Frames returns the number of frames written.
func (s *WAVSink) Frames() uint64 {
	return s.frames
}

// Stats returns the consumer counters.
func (s *WAVSink) Stats() ConsumerStats {
	return s.consumer.Stats()
}

// Close finalizes the WAV header. It does not close the underlying writer.
func (s *WAVSink) Close() error {
	if err := s.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// interleave24 converts per-channel float buffers into interleaved 24-bit
// integers.
func interleave24(dst []int, bufs [][]float64) {
	channels := len(bufs)
	for ch, buf := range bufs {
		for i, v := range buf {
			dst[i*channels+ch] = int(min(max(math.Round(v*maxInt24), minInt24), maxInt24))
		}
	}
}
