package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16

	defaultSpeechTimeout = 8 * time.Second
)

// Stats summarizes the recordings taken so far.
type Stats struct {
	Recordings int           `json:"recordings"`
	Total      time.Duration `json:"total"`
	Threshold  float64       `json:"threshold"`
	SampleRate int           `json:"sample_rate"`
}

func (s Stats) Average() time.Duration {
	if s.Recordings == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Recordings)
}

// Recorder captures one answer at a time and stops after a run of silence.
type Recorder struct {
	src           FrameSource
	sampleRate    int
	threshold     float64
	silence       time.Duration
	speechTimeout time.Duration
	logger        *slog.Logger

	mu    sync.Mutex
	stats Stats
}

type RecorderOption func(*Recorder)

// WithSpeechTimeout bounds how long the recorder waits for the candidate to
// start talking before returning an empty recording.
func WithSpeechTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.speechTimeout = d
		}
	}
}

func NewRecorder(src FrameSource, sampleRate int, threshold float64, silence time.Duration, opts ...RecorderOption) *Recorder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	r := &Recorder{
		src:           src,
		sampleRate:    sampleRate,
		threshold:     threshold,
		silence:       silence,
		speechTimeout: defaultSpeechTimeout,
		logger:        slog.Default().With("component", "recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordUntilSilence returns the answer as WAV bytes. It ends after silence
// following speech, at max, or when no speech starts within the speech
// timeout. A recording with no speech at all is returned as nil.
func (r *Recorder) RecordUntilSilence(ctx context.Context, max time.Duration) ([]byte, error) {
	var (
		pcm         []int16
		heard       bool
		quietFor    time.Duration
		elapsed     time.Duration
		maxReached  bool
		frameLength = func(n int) time.Duration {
			return time.Duration(n) * time.Second / time.Duration(r.sampleRate)
		}
	)

	err := r.src.Capture(ctx, func(frame []int16) (bool, error) {
		d := frameLength(len(frame))
		elapsed += d
		pcm = append(pcm, frame...)

		if RMS(frame) > r.threshold {
			heard = true
			quietFor = 0
		} else {
			quietFor += d
		}

		switch {
		case max > 0 && elapsed >= max:
			maxReached = true
			return true, nil
		case heard && quietFor >= r.silence:
			return true, nil
		case !heard && elapsed >= r.speechTimeout:
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	r.mu.Lock()
	r.stats.Recordings++
	r.stats.Total += elapsed
	r.mu.Unlock()

	if !heard {
		r.logger.Info("no speech detected", "waited", elapsed)
		return nil, nil
	}
	wav, err := encodeWAV(pcm, r.sampleRate)
	if err != nil {
		return nil, err
	}
	r.logger.Info("recording complete", "duration", elapsed, "bytes", len(wav), "max_reached", maxReached)
	return wav, nil
}

func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Threshold = r.threshold
	s.SampleRate = r.sampleRate
	return s
}

func encodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	header, err := wavHeader(len(samples)*2, sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return nil, fmt.Errorf("build wav header: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(header)+len(samples)*2))
	buf.Write(header)
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write wav payload: %w", err)
	}
	return buf.Bytes(), nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	buf.WriteString("RIFF")
	if err := binary.Write(buf, binary.LittleEndian, uint32(chunkSize)); err != nil {
		return nil, err
	}
	buf.WriteString("WAVEfmt ")
	for _, field := range []any{
		uint32(16), uint16(1), uint16(channels), uint32(sampleRate),
		uint32(byteRate), uint16(blockAlign), uint16(bitDepth),
	} {
		if err := binary.Write(buf, binary.LittleEndian, field); err != nil {
			return nil, err
		}
	}
	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
