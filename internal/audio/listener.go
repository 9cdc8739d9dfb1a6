package audio

import (
	"context"
	"log/slog"
)

// Listener detects the candidate starting to talk over the interviewer.
type Listener struct {
	src       FrameSource
	threshold float64
	frames    int
}

// NewListener fires after frames consecutive frames louder than threshold.
func NewListener(src FrameSource, threshold float64, frames int) *Listener {
	if frames <= 0 {
		frames = 3
	}
	return &Listener{src: src, threshold: threshold, frames: frames}
}

// WaitForInterruption blocks until speech onset and returns nil, or returns
// the context error once ctx is done.
func (l *Listener) WaitForInterruption(ctx context.Context) error {
	loud := 0
	err := l.src.Capture(ctx, func(frame []int16) (bool, error) {
		if RMS(frame) > l.threshold {
			loud++
		} else {
			loud = 0
		}
		return loud >= l.frames, nil
	})
	if err != nil {
		return err
	}
	slog.Debug("speech onset detected", "component", "listener", "frames", loud)
	return nil
}
