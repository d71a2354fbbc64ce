package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/host"
	"github.com/tphakala/go-audio-srcmanager/internal/i2s"
)

type convertOptions struct {
	input    string
	output   string
	rate     int
	schedule []string
}

// rateChange is an output rate notification due at a tick.
type rateChange struct {
	tick uint64
	hz   int
}

// summary reports what an offline run did.
type summary struct {
	Ticks       uint64
	InFrames    uint64
	OutFrames   uint64
	Overflows   int
	Underruns   uint64
	RateChanges uint64
}

func newConvertCmd(a *app) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [flags] input output.wav",
		Short: "Convert an audio file offline and write 24-bit WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.input, opts.output = args[0], args[1]
			sum, err := a.runConvert(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"ticks: %d\ninput frames: %d\noutput frames: %d\nrate changes: %d\noverflows: %d\nunderruns: %d\n",
				sum.Ticks, sum.InFrames, sum.OutFrames, sum.RateChanges, sum.Overflows, sum.Underruns)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.rate, "rate", "r", 0,
		"Output sample rate in Hz (default from configuration)")
	cmd.Flags().StringArrayVar(&opts.schedule, "rate-at", nil,
		"Change the output rate at a tick, as TICK:HZ (repeatable)")
	return cmd
}

// parseSchedule parses TICK:HZ pairs into changes ordered by tick.
func parseSchedule(entries []string) ([]rateChange, error) {
	changes := make([]rateChange, 0, len(entries))
	for _, entry := range entries {
		tickStr, hzStr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("rate change %q: want TICK:HZ", entry)
		}
		tick, err := strconv.ParseUint(strings.TrimSpace(tickStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rate change %q: bad tick: %w", entry, err)
		}
		hz, err := strconv.Atoi(strings.TrimSpace(hzStr))
		if err != nil {
			return nil, fmt.Errorf("rate change %q: bad rate: %w", entry, err)
		}
		if !srcmanager.IsSupportedRate(hz) {
			return nil, fmt.Errorf("rate change %q: %w", entry, srcmanager.ErrInvalidRate)
		}
		changes = append(changes, rateChange{tick: tick, hz: hz})
	}
	slices.SortStableFunc(changes, func(x, y rateChange) int {
		switch {
		case x.tick < y.tick:
			return -1
		case x.tick > y.tick:
			return 1
		default:
			return 0
		}
	})
	return changes, nil
}

// managerConfigFor adapts the configured manager to a decoded stream.
func (a *app) managerConfigFor(f host.Format, outRate int) (srcmanager.Config, error) {
	mc := a.cfg.ManagerConfig()
	if !srcmanager.IsSupportedRate(f.SampleRate) {
		return mc, fmt.Errorf("input sample rate %d Hz: %w", f.SampleRate, srcmanager.ErrInvalidRate)
	}
	mc.InputRate = f.SampleRate
	if outRate != 0 {
		mc.OutputRate = outRate
	}
	return mc, mc.Validate()
}

func (a *app) runConvert(ctx context.Context, opts *convertOptions) (sum summary, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	schedule, err := parseSchedule(opts.schedule)
	if err != nil {
		return sum, err
	}

	src, err := host.Open(opts.input)
	if err != nil {
		return sum, err
	}
	defer func() { _ = src.Close() }()

	format := src.Format()
	mc, err := a.managerConfigFor(format, opts.rate)
	if err != nil {
		return sum, err
	}

	a.log.WithFields(logrus.Fields{
		"input":    opts.input,
		"codec":    format.Codec,
		"rate":     format.SampleRate,
		"channels": format.Channels,
	}).Info("input opened")

	m, stop, err := a.newManager(ctx, mc)
	if err != nil {
		return sum, err
	}
	defer stop()
	defer func() { _ = m.Close() }()

	out, err := os.Create(opts.output)
	if err != nil {
		return sum, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	frames := min(a.cfg.Sink.FramesPerBuffer, mc.MaxSamplesOut())
	sink, err := i2s.NewWAVSink(out, m, mc.OutputRate, mc.Channels, frames)
	if err != nil {
		return sum, err
	}

	block := make([][]float64, mc.Channels)
	for ch := range block {
		block[ch] = make([]float64, mc.InSamples)
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		for len(schedule) > 0 && schedule[0].tick <= m.Ticks() {
			if err := m.NotifyOutputRate(schedule[0].hz); err != nil {
				return sum, err
			}
			if schedule[0].hz != mc.OutputRate {
				a.log.WithField("tick", schedule[0].tick).
					Warn("output rate changed mid-file; WAV header keeps the start rate")
			}
			schedule = schedule[1:]
		}

		if err := src.Next(block); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sum, err
		}

		if err := m.ProcessTick(block); err != nil {
			var ierr *srcmanager.InstanceError
			if errors.As(err, &ierr) || !errors.Is(err, srcmanager.ErrOverflow) {
				return sum, err
			}
			sum.Overflows++
		}

		if _, err := sink.DrainAvailable(m.Available); err != nil {
			return sum, err
		}
	}

	// Flush the tail; the last buffer is padded with silence.
	for {
		n, err := m.Available(0)
		if err != nil {
			return sum, err
		}
		if n == 0 {
			break
		}
		if err := sink.Drain(); err != nil {
			return sum, err
		}
	}

	if err := sink.Close(); err != nil {
		return sum, err
	}

	stats := m.Stats()
	sum.Ticks = stats.Ticks
	sum.RateChanges = stats.RateChanges
	sum.InFrames = src.Frames()
	sum.OutFrames = sink.Frames()
	sum.Underruns = sink.Stats().Underruns
	return sum, nil
}
