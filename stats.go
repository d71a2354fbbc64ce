package srcmanager

import (
	"github.com/tphakala/go-audio-srcmanager/internal/fifo"
)

// FIFOState is the fill state of a channel's output FIFO.
type FIFOState = fifo.State

// FIFO states.
const (
	FIFOEmpty    = fifo.Empty
	FIFOPartial  = fifo.Partial
	FIFOFull     = fifo.Full
	FIFOOverflow = fifo.Overflow
)

// ChannelStats is a snapshot of one channel's output FIFO.
type ChannelStats struct {
	Channel   int       `json:"channel"`
	Instance  int       `json:"instance"`
	State     FIFOState `json:"-"`
	StateName string    `json:"state"`
	Available int       `json:"available"`
	Capacity  int       `json:"capacity"`
	Appended  uint64    `json:"appended"`
	Pulled    uint64    `json:"pulled"`
	Discarded uint64    `json:"discarded"`
	Overflows uint64    `json:"overflows"`
	Underruns uint64    `json:"underruns"`
}

// Stats is a point-in-time snapshot of the manager. Counters are read
// individually, so a snapshot taken while ticking is not atomic as a whole.
type Stats struct {
	Ticks          uint64         `json:"ticks"`
	Rates          RatePair       `json:"rates"`
	Pending        bool           `json:"pending"`
	PendingRates   RatePair       `json:"pending_rates"`
	RateChanges    uint64         `json:"rate_changes"`
	InstanceFaults uint64         `json:"instance_faults"`
	BoundFaults    uint64         `json:"bound_faults"`
	Channels       []ChannelStats `json:"channels"`
}

// Stats returns a snapshot of manager and FIFO counters.
func (m *Manager) Stats() Stats {
	pending, ok := m.mailbox.peek()

	s := Stats{
		Ticks:          m.ticks.Load(),
		Rates:          m.Rates(),
		Pending:        ok,
		RateChanges:    m.rateChanges.Load(),
		InstanceFaults: m.instanceFaults.Load(),
		BoundFaults:    m.boundFaults.Load(),
		Channels:       make([]ChannelStats, len(m.fifos)),
	}
	if ok {
		s.PendingRates = pending
	}

	for ch, r := range m.fifos {
		fs := r.Stats()
		state := r.State()
		s.Channels[ch] = ChannelStats{
			Channel:   ch,
			Instance:  m.assign.InstanceOf(ch),
			State:     state,
			StateName: state.String(),
			Available: r.Available(),
			Capacity:  r.Capacity(),
			Appended:  fs.Appended,
			Pulled:    fs.Pulled,
			Discarded: fs.Discarded,
			Overflows: fs.Overflows,
			Underruns: fs.Underruns,
		}
	}

	return s
}
