// Package host cuts decoded PCM streams into the fixed-size per-channel
// input blocks the SRC manager consumes once per tick.
package host

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned by Open for unknown file types.
	ErrUnsupportedFormat = errors.New("host: unsupported audio format")

	// ErrBitDepth is returned for integer PCM with a word length the
	// decoder cannot normalize.
	ErrBitDepth = errors.New("host: unsupported bit depth")
)

// Format describes a decoded stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int // 0 for formats that decode to float
	Codec      string
}

// PCMReader yields interleaved samples normalized to [-1, 1].
type PCMReader interface {
	Format() Format

	// ReadSamples fills dst with interleaved samples and returns how many
	// were written. It returns io.EOF once the stream is exhausted.
	ReadSamples(dst []float64) (int, error)
}

// Source turns a PCMReader into input blocks.
type Source struct {
	r      PCMReader
	format Format
	closer io.Closer

	frame  []float64 // interleaved scratch for one block
	frames uint64
	done   bool
}

// NewSource wraps r. closer may be nil.
func NewSource(r PCMReader, closer io.Closer) (*Source, error) {
	f := r.Format()
	if f.Channels < 1 {
		return nil, fmt.Errorf("host: stream reports %d channels", f.Channels)
	}
	if f.SampleRate < 1 {
		return nil, fmt.Errorf("host: stream reports sample rate %d", f.SampleRate)
	}
	return &Source{r: r, format: f, closer: closer}, nil
}

// Open decodes the file at path, picking the decoder from its extension.
func Open(path string) (*Source, error) {
	open, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	r, err := open(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	src, err := NewSource(r, file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return src, nil
}

// decoders maps lower-case file extensions to stream constructors.
var decoders = map[string]func(*os.File) (PCMReader, error){
	".wav":  func(f *os.File) (PCMReader, error) { return newWAVReader(f) },
	".wave": func(f *os.File) (PCMReader, error) { return newWAVReader(f) },
	".aif":  func(f *os.File) (PCMReader, error) { return newAIFFReader(f) },
	".aiff": func(f *os.File) (PCMReader, error) { return newAIFFReader(f) },
	".mp3":  func(f *os.File) (PCMReader, error) { return newMP3Reader(f) },
	".ogg":  func(f *os.File) (PCMReader, error) { return newOggReader(f) },
}

// Format returns the decoded stream format.
func (s *Source) Format() Format {
	return s.format
}

// Frames returns the number of frames delivered so far, padding excluded.
func (s *Source) Frames() uint64 {
	return s.frames
}

// Next fills block with the next len(block[0]) frames, one slice per output
// channel. Output channel c takes stream channel c modulo the stream's
// channel count, so a mono file feeds every channel. The final partial block
// is zero-padded; the call after it returns io.EOF.
func (s *Source) Next(block [][]float64) error {
	if s.done {
		return io.EOF
	}
	if len(block) == 0 {
		return fmt.Errorf("host: empty block")
	}

	n := len(block[0])
	for ch, samples := range block {
		if len(samples) != n {
			return fmt.Errorf("host: channel %d has %d samples, want %d", ch, len(samples), n)
		}
	}

	chans := s.format.Channels
	want := n * chans
	if cap(s.frame) < want {
		s.frame = make([]float64, want)
	}
	frame := s.frame[:want]

	got := 0
	var readErr error
	for got < want {
		k, err := s.r.ReadSamples(frame[got:])
		got += k
		if err != nil {
			readErr = err
			break
		}
		if k == 0 {
			readErr = io.EOF
			break
		}
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return fmt.Errorf("failed to read audio data: %w", readErr)
	}

	frames := got / chans
	if frames == 0 {
		s.done = true
		return io.EOF
	}
	clear(frame[frames*chans:])

	for ch, samples := range block {
		src := ch % chans
		for i := range samples {
			samples[i] = frame[i*chans+src]
		}
	}

	s.frames += uint64(frames)
	if readErr != nil {
		s.done = true
	}
	return nil
}

// Close releases the underlying file, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
