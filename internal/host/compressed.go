package host

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// go-mp3 always decodes to 16-bit little-endian stereo.
const (
	mp3Channels       = 2
	mp3BytesPerSample = 2
)

// byteStream is the part of the go-mp3 decoder we use.
type byteStream interface {
	Read(p []byte) (int, error)
	SampleRate() int
}

type mp3Reader struct {
	dec    byteStream
	format Format
	buf    []byte
	carry  int // bytes of a split sample kept at the front of buf
}

func newMP3Reader(r io.Reader) (PCMReader, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return newMP3StreamReader(dec), nil
}

func newMP3StreamReader(dec byteStream) *mp3Reader {
	return &mp3Reader{
		dec: dec,
		format: Format{
			SampleRate: dec.SampleRate(),
			Channels:   mp3Channels,
			BitDepth:   16,
			Codec:      "mp3",
		},
	}
}

func (r *mp3Reader) Format() Format {
	return r.format
}

func (r *mp3Reader) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := len(dst) * mp3BytesPerSample
	if cap(r.buf) < need {
		buf := make([]byte, need)
		copy(buf, r.buf[:r.carry])
		r.buf = buf
	}
	r.buf = r.buf[:need]

	n, err := r.dec.Read(r.buf[r.carry:])
	n += r.carry

	samples := n / mp3BytesPerSample
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(r.buf[i*mp3BytesPerSample:]))
		dst[i] = float64(v) / fullScale16
	}

	r.carry = n - samples*mp3BytesPerSample
	if r.carry > 0 {
		copy(r.buf, r.buf[samples*mp3BytesPerSample:n])
	}
	return samples, err
}

// floatStream is the part of the oggvorbis reader we use.
type floatStream interface {
	Read(p []float32) (int, error)
	SampleRate() int
	Channels() int
}

type oggReader struct {
	dec    floatStream
	format Format
	buf    []float32
}

func newOggReader(r io.Reader) (PCMReader, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ogg vorbis: %w", err)
	}
	return newOggStreamReader(dec), nil
}

func newOggStreamReader(dec floatStream) *oggReader {
	return &oggReader{
		dec: dec,
		format: Format{
			SampleRate: dec.SampleRate(),
			Channels:   dec.Channels(),
			Codec:      "vorbis",
		},
	}
}

func (r *oggReader) Format() Format {
	return r.format
}

func (r *oggReader) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(r.buf) < len(dst) {
		r.buf = make([]float32, len(dst))
	}
	buf := r.buf[:len(dst)]

	n, err := r.dec.Read(buf)
	for i, v := range buf[:n] {
		dst[i] = float64(v)
	}
	return n, err
}
