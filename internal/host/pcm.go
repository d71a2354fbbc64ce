package host

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Integer PCM full-scale values by word length. 8-bit PCM is unsigned in
// WAV and signed in AIFF, so it is left out.
const (
	fullScale16 = 32768.0
	fullScale24 = 8388608.0
	fullScale32 = 2147483648.0
)

func fullScale(bits int) (float64, error) {
	switch bits {
	case 16:
		return fullScale16, nil
	case 24:
		return fullScale24, nil
	case 32:
		return fullScale32, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrBitDepth, bits)
	}
}

// pcmDecoder is the part of the go-audio WAV and AIFF decoders we use.
type pcmDecoder interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// intReader adapts a go-audio integer PCM decoder.
type intReader struct {
	dec    pcmDecoder
	format Format
	inv    float64
	buf    *goaudio.IntBuffer
}

func newIntReader(dec pcmDecoder, af *goaudio.Format, bits int, codec string) (*intReader, error) {
	if af == nil {
		return nil, fmt.Errorf("%s: missing format chunk", codec)
	}
	scale, err := fullScale(bits)
	if err != nil {
		return nil, err
	}
	return &intReader{
		dec: dec,
		format: Format{
			SampleRate: af.SampleRate,
			Channels:   af.NumChannels,
			BitDepth:   bits,
			Codec:      codec,
		},
		inv: 1 / scale,
		buf: &goaudio.IntBuffer{Format: af, SourceBitDepth: bits},
	}, nil
}

func (r *intReader) Format() Format {
	return r.format
}

func (r *intReader) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(r.buf.Data) < len(dst) {
		r.buf.Data = make([]int, len(dst))
	}
	r.buf.Data = r.buf.Data[:len(dst)]

	n, err := r.dec.PCMBuffer(r.buf)
	for i := range n {
		dst[i] = float64(r.buf.Data[i]) * r.inv
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}

func newWAVReader(rs io.ReadSeeker) (PCMReader, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	dec.ReadInfo()
	return newIntReader(dec, dec.Format(), int(dec.BitDepth), "wav")
}

func newAIFFReader(rs io.ReadSeeker) (PCMReader, error) {
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid AIFF file")
	}
	dec.ReadInfo()
	return newIntReader(dec, dec.Format(), int(dec.BitDepth), "aiff")
}
