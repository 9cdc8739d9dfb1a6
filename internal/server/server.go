// Package server exposes a read-only monitor for interviews: a JSON API
// over saved sessions and the archive, plus a websocket of live events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Stores are the data sources behind the API. AudioDir may be empty, in
// which case answer audio is not served.
type Stores struct {
	Sessions   SessionStore
	Interviews InterviewStore
	AudioDir   string
}

func Handler(hub *Hub, stores Stores, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, hub, stores, controls)

	return mux
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("monitor listening", "component", "server", "url", "http://"+addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
