package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/host"
	"github.com/tphakala/go-audio-srcmanager/internal/i2s"
)

const (
	pacerInterval = 2 * time.Millisecond
	drainPoll     = 10 * time.Millisecond
)

func newPlayCmd(a *app) *cobra.Command {
	var rate int

	cmd := &cobra.Command{
		Use:   "play [flags] input",
		Short: "Play an audio file through the manager in real time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.runPlay(ctx, args[0], rate)
		},
	}
	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Output sample rate in Hz (default from configuration)")
	return cmd
}

// tickInterval is the wall-clock time one input block covers.
func tickInterval(mc srcmanager.Config) time.Duration {
	return time.Duration(mc.InSamples) * time.Second / time.Duration(mc.InputRate)
}

func (a *app) runPlay(ctx context.Context, input string, rate int) error {
	src, err := host.Open(input)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	mc, err := a.managerConfigFor(src.Format(), rate)
	if err != nil {
		return err
	}

	m, stop, err := a.newManager(ctx, mc)
	if err != nil {
		return err
	}
	defer stop()
	defer func() { _ = m.Close() }()

	// The device must never ask for more than half a FIFO at once.
	frames := min(a.cfg.Sink.FramesPerBuffer, mc.FIFOCapacity()/2)
	if frames != a.cfg.Sink.FramesPerBuffer {
		a.log.WithFields(logrus.Fields{
			"requested": a.cfg.Sink.FramesPerBuffer,
			"used":      frames,
		}).Info("frames per buffer limited by fifo capacity")
	}

	if err := i2s.Initialize(); err != nil {
		return err
	}
	defer func() { _ = i2s.Terminate() }()

	sink, err := i2s.NewPortAudioSink(m, i2s.PortAudioConfig{
		SampleRate:      mc.OutputRate,
		Channels:        mc.Channels,
		FramesPerBuffer: frames,
		Device:          a.cfg.Sink.Device,
	}, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	block := make([][]float64, mc.Channels)
	for ch := range block {
		block[ch] = make([]float64, mc.InSamples)
	}

	next := func() (bool, error) {
		if err := src.Next(block); err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if err := m.ProcessTick(block); err != nil && !errors.Is(err, srcmanager.ErrOverflow) {
			return false, err
		}
		return true, nil
	}

	// Prefill half a FIFO so the first callbacks find audio.
	prefill := uint64(0)
	for {
		n, err := m.Available(0)
		if err != nil {
			return err
		}
		if n >= mc.FIFOCapacity()/2 {
			break
		}
		more, err := next()
		if err != nil {
			return err
		}
		prefill++
		if !more {
			break
		}
	}

	if err := sink.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	a.log.WithField("tick_interval", tickInterval(mc)).Info("playback started")

	interval := tickInterval(mc)
	start := time.Now()
	ticker := time.NewTicker(pacerInterval)
	defer ticker.Stop()

	for more := true; more; {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		due := prefill + uint64(time.Since(start)/interval)
		for more && m.Ticks() < due {
			if more, err = next(); err != nil {
				return err
			}
		}
		if err := sink.Err(); err != nil {
			return err
		}
	}

	// Let the device play out what is buffered.
	for {
		n, err := m.Available(0)
		if err != nil || n == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(drainPoll):
		}
	}

	stats := sink.Stats()
	a.log.WithFields(logrus.Fields{
		"ticks":     m.Ticks(),
		"underruns": stats.Underruns,
		"silence":   stats.SilenceFills,
	}).Info("playback finished")
	return nil
}
