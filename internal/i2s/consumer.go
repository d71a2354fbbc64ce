// Package i2s implements the consumer side of the SRC manager: components
// that pull a fixed number of samples per channel at the output cadence and
// hand them to a device or file, filling any shortfall with silence.
package i2s

import (
	"errors"
	"fmt"
	"sync/atomic"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
)

// Puller is the consumer-side view of the manager.
type Puller interface {
	PullOutputInto(ch int, dst []float64) (int, error)
}

// FillSilence zeroes dst.
func FillSilence(dst []float64) {
	clear(dst)
}

// ConsumerStats counts what a Consumer has seen.
type ConsumerStats struct {
	Pulls        uint64 `json:"pulls"`
	Samples      uint64 `json:"samples"`       // Real samples delivered
	Underruns    uint64 `json:"underruns"`     // Channel pulls that came up short
	SilenceFills uint64 `json:"silence_fills"` // Samples of silence inserted
}

// Consumer pulls one buffer of frames per channel per call.
// It is meant to be driven from a single goroutine.
type Consumer struct {
	src    Puller
	frames int
	bufs   [][]float64

	pulls     atomic.Uint64
	samples   atomic.Uint64
	underruns atomic.Uint64
	silence   atomic.Uint64
}

// NewConsumer creates a consumer of channels x frames buffers.
func NewConsumer(src Puller, channels, frames int) (*Consumer, error) {
	if src == nil {
		return nil, fmt.Errorf("i2s: nil source")
	}
	if channels < 1 || frames < 1 {
		return nil, fmt.Errorf("i2s: invalid buffer shape %dx%d", channels, frames)
	}

	bufs := make([][]float64, channels)
	for ch := range bufs {
		bufs[ch] = make([]float64, frames)
	}
	return &Consumer{src: src, frames: frames, bufs: bufs}, nil
}

// Frames returns the number of frames pulled per channel per call.
func (c *Consumer) Frames() int {
	return c.frames
}

// Channels returns the number of channels pulled per call.
func (c *Consumer) Channels() int {
	return len(c.bufs)
}

// Pull fills every channel buffer. Underruns are padded with silence and
// counted; any other error aborts the pull. The returned slices are reused
// by the next call.
func (c *Consumer) Pull() ([][]float64, error) {
	c.pulls.Add(1)
	for ch, buf := range c.bufs {
		n, err := c.src.PullOutputInto(ch, buf)
		c.samples.Add(uint64(n))
		if err == nil {
			continue
		}
		if !errors.Is(err, srcmanager.ErrUnderrun) {
			return nil, fmt.Errorf("i2s: pull channel %d: %w", ch, err)
		}
		FillSilence(buf[n:])
		c.underruns.Add(1)
		c.silence.Add(uint64(len(buf) - n))
	}
	return c.bufs, nil
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Pulls:        c.pulls.Load(),
		Samples:      c.samples.Load(),
		Underruns:    c.underruns.Load(),
		SilenceFills: c.silence.Load(),
	}
}
