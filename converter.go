package srcmanager

// Converter is one conversion instance: the stateful SRC algorithm bound to
// a group of channels. The manager drives each converter from a single
// goroutine, so implementations need no locking of their own.
type Converter interface {
	// SetRates retunes the converter to a new rate pair. It is called at a
	// tick boundary, before Process, on every instance for the same tick.
	// Implementations may emit zero samples for a settling period afterwards.
	SetRates(rates RatePair) error

	// Process converts one input block. in[i] holds InSamples samples for
	// the i-th assigned channel. out[i] arrives with length zero and
	// capacity MaxSamplesOut; the converter appends its output to it.
	// Output lengths may differ from tick to tick, including zero.
	Process(in, out [][]float64) error

	// Reset clears filter state and history.
	Reset()
}

// InstanceSpec describes the instance a ConverterFactory is asked to build.
type InstanceSpec struct {
	Index         int      // Instance index
	Channels      []int    // Global channel indices, in block order
	InSamples     int      // Input samples per channel per tick
	MaxSamplesOut int      // Output bound per channel per tick
	Rates         RatePair // Rate pair active at startup
	Dither        bool     // Quantize output to 24 bits with dither
}

// ConverterFactory builds the converter for one instance.
type ConverterFactory func(spec InstanceSpec) (Converter, error)
