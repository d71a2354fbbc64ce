package srcmanager

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tphakala/go-audio-srcmanager/internal/fifo"
)

// Manager routes fixed-size input blocks to a fixed set of conversion
// instances, collects their variable-size output into per-channel FIFOs and
// serves the audio interface from those FIFOs.
//
// ProcessTick is called from one producer goroutine (the tick driver).
// PullOutput for a given channel is called from one consumer goroutine (the
// audio interface) and may run concurrently with ProcessTick. Rate-change
// notifications may arrive from any goroutine at any time.
type Manager struct {
	cfg    Config
	assign *Assignment
	maxOut int

	fifos   []*fifo.Ring
	workers []*worker
	results chan tickResult
	tickErr []error // per instance, reused every tick

	mailbox *rateMailbox
	active  atomic.Pointer[RatePair]

	tickMu sync.Mutex
	ticks  atomic.Uint64
	closed atomic.Bool

	instanceFaults atomic.Uint64
	boundFaults    atomic.Uint64
	rateChanges    atomic.Uint64

	log     logrus.FieldLogger
	onFault func(Fault)
	onRate  func(RatePair)
}

// New validates cfg, partitions the channels, creates one converter per
// instance with factory and starts the instance goroutines.
func New(cfg Config, factory ConverterFactory, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: converter factory is nil", ErrConfiguration)
	}

	assign, err := NewAssignment(cfg.Channels, cfg.Instances)
	if err != nil {
		return nil, err
	}

	start := cfg.StartRates()
	m := &Manager{
		cfg:     cfg,
		assign:  assign,
		maxOut:  cfg.MaxSamplesOut(),
		fifos:   make([]*fifo.Ring, cfg.Channels),
		workers: make([]*worker, cfg.Instances),
		results: make(chan tickResult, cfg.Instances),
		tickErr: make([]error, cfg.Instances),
		mailbox: newRateMailbox(start),
		log:     logrus.StandardLogger(),
	}
	m.active.Store(&start)

	for _, opt := range opts {
		opt(m)
	}

	for ch := range m.fifos {
		m.fifos[ch] = fifo.NewRing(cfg.FIFOCapacity())
	}

	for inst := range m.workers {
		conv, err := factory(InstanceSpec{
			Index:         inst,
			Channels:      assign.ChannelsOf(inst),
			InSamples:     cfg.InSamples,
			MaxSamplesOut: m.maxOut,
			Rates:         start,
			Dither:        cfg.Dither,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create converter for instance %d: %w", inst, err)
		}
		m.workers[inst] = newWorker(inst, conv, start, assign.ChannelsPerInstance(), m.maxOut)
	}

	for _, w := range m.workers {
		go w.run(m.results)
	}

	m.log.WithFields(logrus.Fields{
		"channels":      cfg.Channels,
		"instances":     cfg.Instances,
		"in_samples":    cfg.InSamples,
		"max_out":       m.maxOut,
		"fifo_capacity": cfg.FIFOCapacity(),
		"rates":         start.String(),
		"dither":        cfg.Dither,
	}).Debug("src manager started")

	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config {
	return m.cfg
}

// Assignment returns the static channel partition.
func (m *Manager) Assignment() *Assignment {
	return m.assign
}

// ProcessTick runs one conversion cycle.
//
// block must hold exactly Channels slices of exactly InSamples samples each,
// otherwise ErrBlockSize is returned and nothing changes. A latched rate
// change is applied to every instance before any of them converts. The call
// returns only after every instance has finished (a barrier), and then
// appends each channel's output to its FIFO in channel order.
//
// An instance whose SetRates fails loses that tick's output and retunes
// again at every following tick until it accepts the active pair.
//
// Overflowing channels are reset and reported together as an
// *OverflowError; the other channels are still appended. Instance failures
// are returned as *InstanceError values joined with any overflow.
func (m *Manager) ProcessTick(block [][]float64) error {
	if err := m.checkBlock(block); err != nil {
		return err
	}

	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}

	tick := m.ticks.Load()
	change := m.takeRateChange()
	active := m.Rates()

	// Any instance not yet on the active pair retunes first, including one
	// whose SetRates failed on an earlier tick.
	for inst, w := range m.workers {
		lo, hi := m.assign.span(inst)
		job := tickJob{tick: tick, in: block[lo:hi]}
		if w.applied != active {
			job.rates = &active
		}
		w.jobs <- job
	}

	// Barrier: every instance reports before any output is drained.
	for range m.workers {
		res := <-m.results
		m.tickErr[res.instance] = res.err
	}

	var errs []error
	var overflowed []int

	for inst, w := range m.workers {
		if err := m.tickErr[inst]; err != nil {
			m.tickErr[inst] = nil
			ierr := &InstanceError{Instance: inst, Tick: tick, Err: err}
			errs = append(errs, ierr)
			m.instanceFaults.Add(1)
			m.fault(Fault{Kind: FaultInstance, Tick: tick, Instance: inst, Channel: -1, Err: ierr})
			continue
		}

		lo, _ := m.assign.span(inst)
		for j, out := range w.out {
			ch := lo + j

			if len(out) > m.maxOut {
				berr := fmt.Errorf("%w: channel %d produced %d samples, limit %d",
					ErrInstanceBound, ch, len(out), m.maxOut)
				errs = append(errs, &InstanceError{Instance: inst, Tick: tick, Err: berr})
				m.boundFaults.Add(1)
				m.fault(Fault{Kind: FaultBound, Tick: tick, Instance: inst, Channel: ch, Err: berr})
				continue
			}

			if err := m.fifos[ch].Append(out); err != nil {
				overflowed = append(overflowed, ch)
				m.fault(Fault{Kind: FaultOverflow, Tick: tick, Instance: inst, Channel: ch, Err: err})
			}
		}
	}

	m.ticks.Add(1)

	if change != nil {
		m.rateChanges.Add(1)
		m.log.WithFields(logrus.Fields{
			"tick":        tick,
			"input_rate":  change.Input,
			"output_rate": change.Output,
		}).Info("sample rate change applied")
		if m.onRate != nil {
			m.onRate(*change)
		}
	}

	if len(overflowed) > 0 {
		errs = append(errs, &OverflowError{Tick: tick, Channels: overflowed})
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

// checkBlock verifies the block shape without touching any state.
func (m *Manager) checkBlock(block [][]float64) error {
	if len(block) != m.cfg.Channels {
		return fmt.Errorf("%w: got %d channels, want %d", ErrBlockSize, len(block), m.cfg.Channels)
	}
	for ch, samples := range block {
		if len(samples) != m.cfg.InSamples {
			return fmt.Errorf("%w: channel %d has %d samples, want %d",
				ErrBlockSize, ch, len(samples), m.cfg.InSamples)
		}
	}
	return nil
}

// takeRateChange consumes the latched rate pair, if any, and makes it
// active. It returns nil when the active pair stays the same.
func (m *Manager) takeRateChange() *RatePair {
	next, ok := m.mailbox.take()
	if !ok || next == *m.active.Load() {
		return nil
	}
	m.active.Store(&next)
	return &next
}

// fault logs f and hands it to the fault handler.
func (m *Manager) fault(f Fault) {
	entry := m.log.WithFields(logrus.Fields{
		"kind": f.Kind.String(),
		"tick": f.Tick,
	})
	if f.Channel >= 0 {
		entry = entry.WithField("channel", f.Channel)
	}
	if f.Instance >= 0 {
		entry = entry.WithField("instance", f.Instance)
	}

	if f.Kind == FaultOverflow {
		entry.Warn("output fifo overflow, channel reset")
	} else {
		entry.WithError(f.Err).Error("conversion instance fault")
	}

	if m.onFault != nil {
		m.onFault(f)
	}
}

// PullOutput removes up to count samples from channel ch in production
// order. If fewer are buffered it returns what there is together with
// ErrUnderrun; filling the gap is up to the caller.
func (m *Manager) PullOutput(ch, count int) ([]float64, error) {
	if count < 0 {
		count = 0
	}
	dst := make([]float64, count)
	n, err := m.PullOutputInto(ch, dst)
	return dst[:n], err
}

// PullOutputInto is like PullOutput but fills dst instead of allocating.
// It returns the number of samples written.
func (m *Manager) PullOutputInto(ch int, dst []float64) (int, error) {
	r, err := m.ring(ch)
	if err != nil {
		return 0, err
	}
	return r.Pull(dst)
}

// NotifyOutputRate latches a new output sample rate. It takes effect at the
// start of the next tick on every instance at once. Repeating the current
// value is a no-op.
func (m *Manager) NotifyOutputRate(hz int) error {
	return m.notify(func(p *RatePair) { p.Output = hz })
}

// NotifyInputRate latches a new input sample rate, like NotifyOutputRate.
func (m *Manager) NotifyInputRate(hz int) error {
	return m.notify(func(p *RatePair) { p.Input = hz })
}

func (m *Manager) notify(fn func(*RatePair)) error {
	if m.closed.Load() {
		return ErrClosed
	}

	next, latched, err := m.mailbox.update(m.cfg.RatioMax, fn)
	if err != nil {
		return err
	}
	if latched {
		m.log.WithField("rates", next.String()).Debug("sample rate change latched")
	}
	return nil
}

// Rates returns the rate pair used by the most recent (or next, if no
// change is latched) tick.
func (m *Manager) Rates() RatePair {
	return *m.active.Load()
}

// PendingRates returns the latched rate pair and whether one is waiting for
// the next tick boundary.
func (m *Manager) PendingRates() (RatePair, bool) {
	return m.mailbox.peek()
}

// FIFOState returns the fill state of channel ch.
func (m *Manager) FIFOState(ch int) (FIFOState, error) {
	r, err := m.ring(ch)
	if err != nil {
		return FIFOEmpty, err
	}
	return r.State(), nil
}

// Available returns the number of samples buffered for channel ch.
func (m *Manager) Available(ch int) (int, error) {
	r, err := m.ring(ch)
	if err != nil {
		return 0, err
	}
	return r.Available(), nil
}

// ResetChannel discards everything buffered for channel ch.
func (m *Manager) ResetChannel(ch int) error {
	r, err := m.ring(ch)
	if err != nil {
		return err
	}
	r.Reset()
	return nil
}

// Ticks returns the number of completed ticks.
func (m *Manager) Ticks() uint64 {
	return m.ticks.Load()
}

// Close stops the instance goroutines. Ticks and notifications fail with
// ErrClosed afterwards; buffered output can still be pulled.
func (m *Manager) Close() error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if m.closed.Swap(true) {
		return nil
	}

	for _, w := range m.workers {
		close(w.jobs)
	}

	m.log.WithField("ticks", m.ticks.Load()).Debug("src manager closed")
	return nil
}

func (m *Manager) ring(ch int) (*fifo.Ring, error) {
	if ch < 0 || ch >= len(m.fifos) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrInvalidChannel, ch, len(m.fifos))
	}
	return m.fifos[ch], nil
}
