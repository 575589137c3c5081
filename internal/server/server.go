package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/partyhub-games/partyhub/internal/logging"
)

// New creates a listener on the given port. Binding happens here so that a
// busy port is reported before any session state is touched.
func New(port string) (*Server, error) {
	addr := fmt.Sprintf(":%s", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("creating listener on %s: %w", addr, err)
	}

	return &Server{listener: listener}, nil
}

type Server struct {
	listener net.Listener
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// ServeHTTP serves srv until the context is cancelled, then drains with a
// short grace period.
func (s *Server) ServeHTTP(ctx context.Context, srv *http.Server) error {
	logger := logging.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()

		logger.Debugf("server.ServeHTTP: context closed")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Debugf("server.ServeHTTP: shutting down")
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	return nil
}

func HandleHealth(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
}
