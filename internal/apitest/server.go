package apitest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Serve listens on address and serves the backend until ctx is cancelled.
func (b *Backend) Serve(ctx context.Context, address string) error {
	// announces address
	listen, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return b.ServeListener(ctx, listen)
}

// ServeListener serves the backend on l until ctx is cancelled, then shuts
// the server down gracefully.
func (b *Backend) ServeListener(ctx context.Context, l net.Listener) error {
	srv := &http.Server{Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		b.log.Info(ctx, "Stopping dev server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			b.log.Error(sctx, "shutdown failed", "error", err)
		}
	}()

	b.log.Info(ctx, "Starting dev server", "address", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
