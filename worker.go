package srcmanager

import (
	"fmt"
)

// tickJob is the work for one instance for one tick.
type tickJob struct {
	tick  uint64
	rates *RatePair   // Non-nil when the instance must retune before converting
	in    [][]float64 // The instance's channels, sliced from the caller's block
}

// tickResult reports that an instance finished a tick.
type tickResult struct {
	instance int
	err      error
}

// worker runs one conversion instance on its own goroutine, standing in for
// a dedicated core.
type worker struct {
	index int
	conv  Converter
	jobs  chan tickJob

	// applied is the last pair SetRates accepted. The worker writes it
	// before reporting a result; the manager reads it after the barrier.
	applied RatePair

	// out holds the instance's output blocks for the last tick. It is only
	// touched by the worker between receiving a job and sending its result,
	// and by the manager after the barrier.
	out [][]float64
}

func newWorker(index int, conv Converter, rates RatePair, channels, maxOut int) *worker {
	out := make([][]float64, channels)
	for i := range out {
		out[i] = make([]float64, 0, maxOut)
	}

	return &worker{
		index:   index,
		conv:    conv,
		jobs:    make(chan tickJob, 1),
		applied: rates,
		out:     out,
	}
}

// run processes jobs until the jobs channel is closed.
func (w *worker) run(results chan<- tickResult) {
	for job := range w.jobs {
		results <- tickResult{instance: w.index, err: w.step(job)}
	}
}

// step retunes if needed and converts one block.
func (w *worker) step(job tickJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()

	for i := range w.out {
		w.out[i] = w.out[i][:0]
	}

	if job.rates != nil {
		if err := w.conv.SetRates(*job.rates); err != nil {
			return fmt.Errorf("set rates %s: %w", job.rates, err)
		}
		w.applied = *job.rates
	}

	return w.conv.Process(job.in, w.out)
}
