package audio

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// RMS returns the root mean square amplitude of a frame.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Calibrate listens to ambient noise for d and returns mean + 2*stddev of
// the per-frame RMS, never lower than floor.
func Calibrate(ctx context.Context, src FrameSource, sampleRate int, d time.Duration, floor float64) (float64, error) {
	want := int(d.Seconds() * float64(sampleRate))
	var levels []float64
	seen := 0
	err := src.Capture(ctx, func(frame []int16) (bool, error) {
		levels = append(levels, RMS(frame))
		seen += len(frame)
		return seen >= want, nil
	})
	if err != nil {
		return floor, err
	}

	threshold := calibratedThreshold(levels)
	slog.Info("microphone calibrated", "component", "audio", "frames", len(levels), "threshold", threshold, "floor", floor)
	return math.Max(threshold, floor), nil
}

func calibratedThreshold(levels []float64) float64 {
	if len(levels) == 0 {
		return 0
	}
	var mean float64
	for _, l := range levels {
		mean += l
	}
	mean /= float64(len(levels))

	var variance float64
	for _, l := range levels {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(levels))
	return mean + 2*math.Sqrt(variance)
}
