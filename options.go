package srcmanager

import (
	"github.com/sirupsen/logrus"
)

// FaultKind classifies a reported fault.
type FaultKind int

const (
	// FaultOverflow means a channel FIFO overflowed and was reset.
	FaultOverflow FaultKind = iota

	// FaultInstance means a conversion instance failed a tick.
	FaultInstance

	// FaultBound means an instance produced more output than the worst case.
	FaultBound
)

// String returns the fault kind name.
func (k FaultKind) String() string {
	switch k {
	case FaultOverflow:
		return "overflow"
	case FaultInstance:
		return "instance"
	case FaultBound:
		return "bound"
	default:
		return "unknown"
	}
}

// Fault describes one fault raised during a tick.
type Fault struct {
	Kind     FaultKind
	Tick     uint64
	Instance int // -1 when not applicable
	Channel  int // -1 when not applicable
	Err      error
}

// Option configures optional manager behavior.
type Option func(*Manager)

// WithLogger sets the logger used for faults and rate changes.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithFaultHandler registers a callback invoked for every fault. It runs on
// the goroutine calling ProcessTick and must not block.
func WithFaultHandler(fn func(Fault)) Option {
	return func(m *Manager) {
		m.onFault = fn
	}
}

// WithRateHandler registers a callback invoked each time a new rate pair
// takes effect, after the tick that first used it.
func WithRateHandler(fn func(RatePair)) Option {
	return func(m *Manager) {
		m.onRate = fn
	}
}
