package srcmanager

// Default configuration, matching the reference two-channel deployment.
const (
	DefaultChannels       = 2     // Total audio channels routed through SRC
	DefaultInstances      = 2     // Conversion instances, one per logical core
	DefaultInSamples      = 4     // Input samples per channel per tick
	DefaultRatioMax       = 5     // Worst-case output:input ratio (44.1k -> 192k)
	DefaultDither         = false // Quantize output to 24 bits with dither
	DefaultFIFOMultiplier = 8     // FIFO depth in worst-case ticks
	DefaultInputRate      = RateDAT
	DefaultOutputRate     = RateDAT
)

// Configuration limits
const (
	minChannels  = 1
	maxChannels  = 256 // Same ceiling the resampler applies
	minInstances = 1
	minInSamples = 4 // Two successive /2 decimation stages need at least 4
	minRatioMax  = 1
	minFIFOMult  = 1
)

// Supported sample rates in Hz.
const (
	RateCD       = 44100
	RateDAT      = 48000
	RateHiRes88  = 88200
	RateHiRes96  = 96000
	RateHiRes176 = 176400
	RateHiRes192 = 192000
)

// supportedRates is the rate family every conversion instance can be tuned to.
var supportedRates = []int{
	RateCD,
	RateDAT,
	RateHiRes88,
	RateHiRes96,
	RateHiRes176,
	RateHiRes192,
}
