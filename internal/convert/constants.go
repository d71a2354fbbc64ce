package convert

// Cubic (Hermite) interpolation constants
const (
	// Cubic interpolation uses a 4-point window
	cubicPoints = 4

	// Cubic output lags the newest input by this many samples
	cubicLatencySamples = 2

	// Catmull-Rom basis coefficients
	hermiteCoeff0_5 = 0.5
	hermiteCoeff1_5 = 1.5
	hermiteCoeff2_5 = 2.5
)

// Linear interpolation constants
const (
	// Linear output lags the newest input by one sample
	linearLatencySamples = 1
)

// Settling
const (
	// DefaultSettleTicks is how many ticks a converter stays silent after a
	// rate change while its history refills at the new ratio.
	DefaultSettleTicks = 2
)
