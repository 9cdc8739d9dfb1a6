package speech

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

type job struct {
	ctx     context.Context
	text    string
	onStart func()
	done    chan error
}

// Worker serializes all calls into a non-reentrant Engine on one goroutine
// locked to its OS thread.
type Worker struct {
	engine Engine
	jobs   chan job
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewWorker(engine Engine) *Worker {
	w := &Worker{
		engine: engine,
		jobs:   make(chan job, 16),
		quit:   make(chan struct{}),
		logger: slog.Default().With("component", "speech"),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-w.quit:
			w.drain(ErrClosed)
			return
		case j := <-w.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			if j.onStart != nil {
				j.onStart()
			}
			j.done <- w.engine.Say(j.ctx, j.text)
		}
	}
}

// SpeakUnit plays one sentence and returns once playback has finished.
// onStart, when set, runs on the worker just before the engine is handed the
// text. Units dropped by Stop or a cancelled ctx never call it.
func (w *Worker) SpeakUnit(ctx context.Context, text string, onStart func()) error {
	j := job{ctx: ctx, text: text, onStart: onStart, done: make(chan error, 1)}
	select {
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case w.jobs <- j:
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop fails every queued unit with ErrStopped and cuts off the one playing.
func (w *Worker) Stop() {
	n := w.drain(ErrStopped)
	w.engine.Stop()
	if n > 0 {
		w.logger.Debug("dropped queued speech", "units", n)
	}
}

func (w *Worker) drain(err error) int {
	n := 0
	for {
		select {
		case j := <-w.jobs:
			j.done <- err
			n++
		default:
			return n
		}
	}
}

// Close stops the worker goroutine. Later calls to SpeakUnit return ErrClosed.
func (w *Worker) Close() error {
	w.once.Do(func() {
		close(w.quit)
		w.engine.Stop()
	})
	w.wg.Wait()
	return nil
}
