package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// FrameFunc receives one frame of mono PCM16 samples. Returning true ends
// the capture.
type FrameFunc func(frame []int16) (done bool, err error)

// FrameSource delivers microphone frames to one consumer at a time.
type FrameSource interface {
	Capture(ctx context.Context, fn FrameFunc) error
}

// Mic wraps a PortAudio capture stream. Capture holds the device for its
// whole duration, so the recorder and the interruption listener never read
// concurrently.
type Mic struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
}

// NewMic initializes PortAudio and opens a capture stream with the given
// sample rate and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	return &Mic{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (m *Mic) SampleRate() int { return m.sampleRate }

func (m *Mic) Capture(ctx context.Context, fn FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer func() { _ = m.stream.Stop() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("read capture: %w", err)
		}
		frame := make([]int16, len(m.buf))
		copy(frame, m.buf)
		done, err := fn(frame)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
