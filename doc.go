// Package srcmanager runs multichannel sample-rate conversion across a fixed
// set of parallel conversion instances and buffers the variable-size output
// for a consumer that pulls at a fixed cadence.
//
// # Data flow
//
// Once per tick the host hands the manager an input block: InSamples
// samples for each of Channels channels. The manager slices the block by
// the static channel Assignment, gives every instance its sub-block on the
// instance's own goroutine, waits for all of them, and appends each
// channel's output to that channel's FIFO. The consumer (an I2S driver, a
// sound card callback, a file writer) pulls from the FIFOs independently
// and fills any shortfall itself.
//
//	host --ProcessTick--> [instance 0] --> FIFO ch0, ch1 --PullOutput--> consumer
//	                      [instance 1] --> FIFO ch2, ch3
//
// # Sizing
//
// Every buffer is sized for the worst-case ratio, never for the active one:
// each channel may produce at most RatioMax*InSamples samples per tick and
// each FIFO holds FIFOMultiplier times that. With the defaults (4-sample
// blocks, ratio 5, multiplier 8) that is 20 samples per tick and a
// 160-sample FIFO.
//
// # Rate changes
//
// NotifyOutputRate and NotifyInputRate may be called from any goroutine.
// They latch the requested pair; the next ProcessTick applies it to every
// instance before any instance converts, so channels never mix rates within
// a tick. Several notifications between ticks coalesce into one change.
//
// # Faults
//
// A FIFO that cannot take a tick's output is reset and the tick returns an
// *OverflowError naming the channels. Pulling more than is buffered returns
// the short count with ErrUnderrun, which is not a fault. Converter failures
// come back as *InstanceError values; several errors from one tick are
// combined with errors.Join.
//
// # Converters
//
// The conversion algorithm is supplied through a ConverterFactory. The
// internal/convert package provides a linear and a cubic interpolating
// converter used by the srcman command.
package srcmanager
