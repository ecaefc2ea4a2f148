package network

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cosim/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

// NewMux routes /ws to the hub and /frame to the latest frame as JSON.
func NewMux(h *Hub, pub *snapshot.Publisher) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/frame", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f, ok := pub.Latest()
		if !ok {
			http.Error(w, "no frame published yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f)
	})
	return mux
}

// Serve streams pub to websocket clients on addr until the publisher stops
// or ctx ends, then shuts the listener down. It fits the consumer
// signature of the run loop.
func Serve(ctx context.Context, addr string, pub *snapshot.Publisher, logger *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := NewHub(logger)
	go h.Run(hubCtx)
	srv := &http.Server{Handler: NewMux(h, pub), ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	logger.Info("serving frames", "addr", ln.Addr().String())

	consumeErr := h.Consume(ctx, pub)

	shutCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return consumeErr
}
