package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/firehose-io/firehose/internal/server/http/controllers"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Server is the HTTP front of the streaming service: SSE routes, the
// WebSocket endpoint, health, and metrics.
type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds the server and its route table from the shared dependencies.
func New(deps *controllers.Deps) *Server {
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(deps).RegisterAllRoutes(mux)
	return &Server{
		srv:    &http.Server{Handler: cors(mux)},
		logger: deps.Logger.WithComponent("http"),
	}
}

// ListenAndServe serves on addr until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Accept, Cache-Control")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
