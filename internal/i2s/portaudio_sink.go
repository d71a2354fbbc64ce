package i2s

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// PortAudioSink plays manager output on a PortAudio output device. The
// device callback is the consumer: it pulls one buffer per channel each
// time the device asks for audio.
type PortAudioSink struct {
	consumer *Consumer
	stream   *portaudio.Stream
	log      logrus.FieldLogger

	mu      sync.Mutex
	lastErr error
}

// PortAudioConfig describes the output stream.
type PortAudioConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	Device          int // Index into portaudio.Devices(), -1 for default
}

// Initialize sets up the PortAudio subsystem. Pair with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// OutputDevice returns the device at index id, or the default output device
// for -1.
func OutputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	return devices[id], nil
}

// NewPortAudioSink opens, but does not start, an output stream. Initialize
// must have been called.
func NewPortAudioSink(src Puller, cfg PortAudioConfig, log logrus.FieldLogger) (*PortAudioSink, error) {
	c, err := NewConsumer(src, cfg.Channels, cfg.FramesPerBuffer)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	dev, err := OutputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	s := &PortAudioSink{consumer: c, log: log}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	s.stream = stream

	log.WithFields(logrus.Fields{
		"device":      dev.Name,
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
		"frames":      cfg.FramesPerBuffer,
	}).Info("output stream opened")

	return s, nil
}

// process is the device callback. out is interleaved.
func (s *PortAudioSink) process(out []float32) {
	bufs, err := s.consumer.Pull()
	if err != nil {
		clear(out)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return
	}
	interleaveFloat32(out, bufs)
}

// interleaveFloat32 writes per-channel buffers into an interleaved device
// buffer.
func interleaveFloat32(dst []float32, bufs [][]float64) {
	channels := len(bufs)
	for ch, buf := range bufs {
		for i, v := range buf {
			if j := i*channels + ch; j < len(dst) {
				dst[j] = float32(v)
			}
		}
	}
}

// Start starts the stream.
func (s *PortAudioSink) Start() error {
	return s.stream.Start()
}

// Err returns the last error seen in the callback.
func (s *PortAudioSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns the consumer counters.
func (s *PortAudioSink) Stats() ConsumerStats {
	return s.consumer.Stats()
}

// Close stops and closes the stream.
func (s *PortAudioSink) Close() error {
	if err := s.stream.Stop(); err != nil {
		_ = s.stream.Close()
		return err
	}
	return s.stream.Close()
}
