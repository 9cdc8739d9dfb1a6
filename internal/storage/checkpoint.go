package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
)

type Saver interface {
	Save(sess *session.Session) error
}

// Checkpointer periodically saves a session while it is IN_PROGRESS.
type Checkpointer struct {
	saver    Saver
	interval time.Duration
	logger   *slog.Logger

	newTicker func(time.Duration) (<-chan time.Time, func())
}

func NewCheckpointer(saver Saver, interval time.Duration) *Checkpointer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Checkpointer{
		saver:    saver,
		interval: interval,
		logger:   slog.Default().With("component", "storage.checkpoint"),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start launches the background save loop. The returned stop func cancels
// the loop and blocks until it has exited, so no save runs after it
// returns. Calling stop more than once is safe.
func (c *Checkpointer) Start(ctx context.Context, sess *session.Session) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	ticks, stopTicker := c.newTicker(c.interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer stopTicker()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if ctx.Err() != nil {
					return
				}
				if sess.Status() != session.StatusInProgress {
					continue
				}
				if err := c.saver.Save(sess); err != nil {
					c.logger.Warn("auto-checkpoint failed", "session_id", sess.ID(), "error", err)
					continue
				}
				c.logger.Debug("auto-checkpoint saved", "session_id", sess.ID())
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
