package srcmanager

import (
	"fmt"
	"slices"
	"sync"
)

// RatePair is the (input, output) sample frequency pair that governs the
// conversion ratio. It is passed by value so no instance ever sees half of
// an update.
type RatePair struct {
	Input  int `json:"input"`  // Input sample rate in Hz
	Output int `json:"output"` // Output sample rate in Hz
}

// Ratio returns Output/Input.
func (p RatePair) Ratio() float64 {
	if p.Input == 0 {
		return 0
	}
	return float64(p.Output) / float64(p.Input)
}

// MaxOutput returns the most samples a block of n input samples can turn
// into at this pair: ceil(n * Output / Input).
func (p RatePair) MaxOutput(n int) int {
	if p.Input <= 0 {
		return 0
	}
	return (n*p.Output + p.Input - 1) / p.Input
}

// String formats the pair as "in->out".
func (p RatePair) String() string {
	return fmt.Sprintf("%d->%d", p.Input, p.Output)
}

// Validate checks both rates are supported and the ratio is within ratioMax.
func (p RatePair) Validate(ratioMax int) error {
	if !IsSupportedRate(p.Input) {
		return fmt.Errorf("%w: input rate %d Hz", ErrInvalidRate, p.Input)
	}
	if !IsSupportedRate(p.Output) {
		return fmt.Errorf("%w: output rate %d Hz", ErrInvalidRate, p.Output)
	}
	if p.Output > p.Input*ratioMax {
		return fmt.Errorf("%w: ratio %s exceeds worst case %d", ErrInvalidRate, p, ratioMax)
	}
	return nil
}

// IsSupportedRate reports whether hz is one of the supported sample rates.
func IsSupportedRate(hz int) bool {
	return slices.Contains(supportedRates, hz)
}

// SupportedRates returns the supported sample rates in ascending order.
func SupportedRates() []int {
	return slices.Clone(supportedRates)
}

// rateMailbox is a single-slot latch between the rate-change listener and
// the tick loop. Notifications merge into the latest requested pair; the
// tick loop takes the latch at a boundary.
type rateMailbox struct {
	mu      sync.Mutex
	latest  RatePair // Most recently requested pair
	pending bool     // latest has not been taken yet
}

func newRateMailbox(start RatePair) *rateMailbox {
	return &rateMailbox{latest: start}
}

// update applies fn to the latest requested pair and latches the result.
// It returns the new pair and whether it differs from what was latched.
func (m *rateMailbox) update(ratioMax int, fn func(*RatePair)) (RatePair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.latest
	fn(&next)
	if err := next.Validate(ratioMax); err != nil {
		return m.latest, false, err
	}
	if next == m.latest {
		return next, false, nil
	}

	m.latest = next
	m.pending = true
	return next, true, nil
}

// take returns the latched pair and clears the latch.
func (m *rateMailbox) take() (RatePair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending {
		return RatePair{}, false
	}
	m.pending = false
	return m.latest, true
}

// peek returns the latched pair without clearing it.
func (m *rateMailbox) peek() (RatePair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.pending
}
