package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server exposes the feed hub over HTTP: a websocket endpoint and a health
// probe. It is read-only; nothing here can affect matching.
type Server struct {
	hub  *Hub
	http *http.Server
}

// NewServer builds the feed HTTP server on the given listen address.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("feed server listening", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
