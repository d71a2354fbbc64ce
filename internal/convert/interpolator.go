// Package convert provides a streaming interpolating converter that
// satisfies srcmanager.Converter.
//
// It is a reference implementation: it keeps every invariant the manager
// relies on (bounded, deterministic output per tick; silent settling after a
// rate change) without a polyphase filter bank.
package convert

import (
	"errors"
	"fmt"
	"strings"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
	"github.com/tphakala/go-audio-srcmanager/internal/dither"
	"github.com/tphakala/go-audio-srcmanager/internal/simdops"
)

// Kind selects the interpolation kernel.
type Kind string

const (
	// KindLinear interpolates between the two newest samples.
	KindLinear Kind = "linear"

	// KindCubic uses a 4-point Catmull-Rom Hermite kernel.
	KindCubic Kind = "cubic"
)

// ErrShape is returned when Process is called with the wrong number of
// channels.
var ErrShape = errors.New("convert: block shape mismatch")

// ParseKind converts a name into a Kind.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindLinear, KindCubic:
		return k, nil
	case "":
		return KindCubic, nil
	default:
		return "", fmt.Errorf("convert: unknown converter kind %q", name)
	}
}

// channelState is the per-channel streaming state.
type channelState struct {
	hist  [cubicPoints]float64 // oldest first
	phase int64                // next output position past the newest input, scaled by the output rate
	quant dither.Quantizer
}

// Interpolator converts the channels owned by one instance.
//
// Output positions are tracked with an integer accumulator over the active
// rate pair, so a tick of n input samples yields at most ceil(n*out/in)
// samples and the total never drifts.
type Interpolator struct {
	kind    Kind
	index   int
	rates   srcmanager.RatePair
	settle  int
	silent  int // ticks left in the current settling period
	chans   []channelState
	weights [cubicPoints]float64
	ops     *simdops.Ops
}

// New creates an Interpolator for the instance described by spec.
func New(kind Kind, spec srcmanager.InstanceSpec, settleTicks int) (*Interpolator, error) {
	if kind != KindLinear && kind != KindCubic {
		return nil, fmt.Errorf("convert: unknown converter kind %q", kind)
	}
	if len(spec.Channels) == 0 {
		return nil, fmt.Errorf("convert: instance %d owns no channels", spec.Index)
	}
	if spec.Rates.Input <= 0 || spec.Rates.Output <= 0 {
		return nil, fmt.Errorf("convert: invalid rates %s", spec.Rates)
	}
	if settleTicks < 0 {
		settleTicks = 0
	}

	it := &Interpolator{
		kind:   kind,
		index:  spec.Index,
		rates:  spec.Rates,
		settle: settleTicks,
		chans:  make([]channelState, len(spec.Channels)),
		ops:    simdops.Float64Ops(),
	}

	for i := range it.chans {
		q, err := dither.New(spec.Dither, dither.DefaultBits)
		if err != nil {
			return nil, err
		}
		it.chans[i].quant = q
	}

	return it, nil
}

// NewFactory returns a ConverterFactory that builds Interpolators of the
// given kind.
func NewFactory(kind Kind, settleTicks int) srcmanager.ConverterFactory {
	return func(spec srcmanager.InstanceSpec) (srcmanager.Converter, error) {
		return New(kind, spec, settleTicks)
	}
}

// Kind returns the interpolation kernel in use.
func (it *Interpolator) Kind() Kind {
	return it.kind
}

// Rates returns the active rate pair.
func (it *Interpolator) Rates() srcmanager.RatePair {
	return it.rates
}

// Settling reports whether the converter is inside a settling period.
func (it *Interpolator) Settling() bool {
	return it.silent > 0
}

// Latency returns the output delay of the kernel in input samples.
func (it *Interpolator) Latency() int {
	if it.kind == KindLinear {
		return linearLatencySamples
	}
	return cubicLatencySamples
}

// SetRates retunes the converter. A pair equal to the active one is a no-op;
// any other pair restarts the phase and begins a settling period.
func (it *Interpolator) SetRates(rates srcmanager.RatePair) error {
	if rates.Input <= 0 || rates.Output <= 0 {
		return fmt.Errorf("convert: invalid rates %s", rates)
	}
	if rates == it.rates {
		return nil
	}

	it.rates = rates
	it.silent = it.settle
	for i := range it.chans {
		it.chans[i].phase = 0
	}
	return nil
}

// Process converts one tick. in[i] and out[i] belong to the instance's i-th
// channel; output is appended to out[i].
func (it *Interpolator) Process(in, out [][]float64) error {
	if len(in) != len(it.chans) || len(out) != len(it.chans) {
		return fmt.Errorf("%w: instance %d has %d channels, got %d in / %d out",
			ErrShape, it.index, len(it.chans), len(in), len(out))
	}

	settling := it.silent > 0
	inRate := int64(it.rates.Input)
	outRate := int64(it.rates.Output)

	for i := range it.chans {
		cs := &it.chans[i]
		dst := out[i]

		for _, sample := range in[i] {
			copy(cs.hist[:], cs.hist[1:])
			cs.hist[cubicPoints-1] = sample

			if settling {
				continue
			}

			for cs.phase < outRate {
				x := float64(cs.phase) / float64(outRate)
				dst = append(dst, it.interpolate(cs, x))
				cs.phase += inRate
			}
			cs.phase -= outRate
		}

		if len(dst) > 0 {
			cs.quant.Quantize(dst)
		}
		out[i] = dst
	}

	if settling {
		it.silent--
	}
	return nil
}

// interpolate evaluates the kernel at fractional position x.
func (it *Interpolator) interpolate(cs *channelState, x float64) float64 {
	if it.kind == KindLinear {
		return (1-x)*cs.hist[2] + x*cs.hist[3]
	}

	x2 := x * x
	x3 := x2 * x
	w := &it.weights
	w[0] = -hermiteCoeff0_5*x3 + x2 - hermiteCoeff0_5*x
	w[1] = hermiteCoeff1_5*x3 - hermiteCoeff2_5*x2 + 1
	w[2] = -hermiteCoeff1_5*x3 + 2*x2 + hermiteCoeff0_5*x
	w[3] = hermiteCoeff0_5*x3 - hermiteCoeff0_5*x2
	return it.ops.DotProductUnsafe(w[:], cs.hist[:])
}

// Reset clears history, phase and any settling period.
func (it *Interpolator) Reset() {
	it.silent = 0
	for i := range it.chans {
		it.chans[i].hist = [cubicPoints]float64{}
		it.chans[i].phase = 0
	}
}
