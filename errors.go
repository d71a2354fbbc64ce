package srcmanager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tphakala/go-audio-srcmanager/internal/fifo"
)

// Errors returned by the manager.
var (
	// ErrConfiguration indicates invalid static parameters. It is fatal:
	// no manager is created.
	ErrConfiguration = errors.New("invalid src manager configuration")

	// ErrBlockSize indicates an input block of the wrong shape. The tick is
	// rejected and no state changes.
	ErrBlockSize = errors.New("input block size mismatch")

	// ErrOverflow indicates a channel FIFO overflowed and was reset.
	ErrOverflow = fifo.ErrOverflow

	// ErrUnderrun indicates a pull returned fewer samples than requested.
	ErrUnderrun = fifo.ErrUnderrun

	// ErrInvalidRate indicates an unsupported sample rate or a rate pair whose
	// ratio exceeds the configured worst case.
	ErrInvalidRate = errors.New("invalid sample rate")

	// ErrInvalidChannel indicates a channel index outside 0..Channels-1.
	ErrInvalidChannel = errors.New("channel out of range")

	// ErrInstanceBound indicates a conversion instance produced more samples
	// than the worst-case ratio allows.
	ErrInstanceBound = errors.New("instance output exceeds worst-case bound")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("src manager closed")
)

// OverflowError reports the channels whose FIFOs overflowed during one tick.
// Their buffered audio was discarded and the FIFOs reset.
type OverflowError struct {
	Tick     uint64
	Channels []int
}

func (e *OverflowError) Error() string {
	chans := make([]string, len(e.Channels))
	for i, ch := range e.Channels {
		chans[i] = fmt.Sprint(ch)
	}
	return fmt.Sprintf("%v at tick %d on channel(s) %s", ErrOverflow, e.Tick, strings.Join(chans, ","))
}

// Unwrap lets errors.Is match ErrOverflow.
func (e *OverflowError) Unwrap() error {
	return ErrOverflow
}

// InstanceError wraps a failure reported by one conversion instance.
type InstanceError struct {
	Instance int
	Tick     uint64
	Err      error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("instance %d at tick %d: %v", e.Instance, e.Tick, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}
