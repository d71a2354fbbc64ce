package srcmanager

import (
	"fmt"
	"math/bits"
)

// Config holds the static parameters a manager is built against. They are
// fixed per deployment and cannot change after New.
type Config struct {
	// Channels is the total number of audio channels. It must divide evenly
	// by Instances.
	Channels int

	// Instances is the number of conversion instances running in parallel.
	// Each owns Channels/Instances contiguous channels.
	Instances int

	// InSamples is the number of samples per channel in every input block.
	// Must be a power of two and at least 4.
	InSamples int

	// RatioMax is the worst-case output:input sample ratio of any supported
	// rate pair. Every buffer is sized for it regardless of the active pair.
	RatioMax int

	// Dither enables dithered quantization of the output to 24 bits.
	Dither bool

	// FIFOMultiplier is the output FIFO depth expressed in worst-case ticks.
	FIFOMultiplier int

	// InputRate and OutputRate form the rate pair active at startup.
	InputRate  int
	OutputRate int
}

// DefaultConfig returns the reference configuration: two channels on two
// instances, four-sample blocks and a 160-sample FIFO per channel.
func DefaultConfig() Config {
	return Config{
		Channels:       DefaultChannels,
		Instances:      DefaultInstances,
		InSamples:      DefaultInSamples,
		RatioMax:       DefaultRatioMax,
		Dither:         DefaultDither,
		FIFOMultiplier: DefaultFIFOMultiplier,
		InputRate:      DefaultInputRate,
		OutputRate:     DefaultOutputRate,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Channels < minChannels {
		return fmt.Errorf("%w: channels must be at least %d", ErrConfiguration, minChannels)
	}

	if c.Channels > maxChannels {
		return fmt.Errorf("%w: too many channels (max %d)", ErrConfiguration, maxChannels)
	}

	if c.Instances < minInstances {
		return fmt.Errorf("%w: instances must be at least %d", ErrConfiguration, minInstances)
	}

	if c.Channels%c.Instances != 0 {
		return fmt.Errorf("%w: %d channels do not divide evenly across %d instances",
			ErrConfiguration, c.Channels, c.Instances)
	}

	if c.InSamples < minInSamples || !isPowerOfTwo(c.InSamples) {
		return fmt.Errorf("%w: input block size %d must be a power of two >= %d",
			ErrConfiguration, c.InSamples, minInSamples)
	}

	if c.RatioMax < minRatioMax {
		return fmt.Errorf("%w: worst-case ratio must be at least %d", ErrConfiguration, minRatioMax)
	}

	if c.FIFOMultiplier < minFIFOMult {
		return fmt.Errorf("%w: fifo multiplier must be at least %d", ErrConfiguration, minFIFOMult)
	}

	if err := c.StartRates().Validate(c.RatioMax); err != nil {
		return fmt.Errorf("%w: start rates: %w", ErrConfiguration, err)
	}

	return nil
}

// ChannelsPerInstance returns the number of channels each instance handles.
func (c *Config) ChannelsPerInstance() int {
	if c.Instances == 0 {
		return 0
	}
	return c.Channels / c.Instances
}

// MaxSamplesOut returns the most samples one channel may produce per tick.
func (c *Config) MaxSamplesOut() int {
	return c.RatioMax * c.InSamples
}

// FIFOCapacity returns the per-channel output FIFO size in samples.
func (c *Config) FIFOCapacity() int {
	return c.MaxSamplesOut() * c.FIFOMultiplier
}

// StartRates returns the rate pair active before any notification.
func (c *Config) StartRates() RatePair {
	return RatePair{Input: c.InputRate, Output: c.OutputRate}
}

// isPowerOfTwo reports whether n has exactly one bit set.
func isPowerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}
