package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// NotifyPath is the endpoint the engine posts notifications to.
const NotifyPath = "/notify"

// HTTPTransport serves notifications as `POST /notify` on a loopback
// address.
type HTTPTransport struct {
	addr string
	log  *logging.Logger

	mu       sync.Mutex
	server   *http.Server
	boundTo  string
	running  atomic.Bool
	done     chan struct{}
	listener net.Listener
}

// NewHTTPTransport creates a transport listening on addr, e.g.
// "127.0.0.1:53318". Port 0 picks a free port.
func NewHTTPTransport(addr string, log *logging.Logger) *HTTPTransport {
	return &HTTPTransport{
		addr: addr,
		log:  log.Component("relay-http"),
	}
}

// Kind implements Transport.
func (t *HTTPTransport) Kind() string { return "http" }

// Address implements Transport. Once bound it is the actual address.
func (t *HTTPTransport) Address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.boundTo != "" {
		return t.boundTo
	}
	return t.addr
}

// URL returns the full notify endpoint.
func (t *HTTPTransport) URL() string {
	return "http://" + t.Address() + NotifyPath
}

// Serve implements Transport.
func (t *HTTPTransport) Serve(process ProcessFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind notification endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+NotifyPath, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, constants.RelayMaxMessageSize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		reply, err := process(r.Context(), raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(reply)
	})

	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: constants.RelayConnTimeout,
		ReadTimeout:       constants.RelayConnTimeout,
		WriteTimeout:      constants.RelayConnTimeout,
	}
	t.listener = listener
	t.boundTo = listener.Addr().String()
	t.running.Store(true)
	t.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		defer t.running.Store(false)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error().Err(err).Msg("notification endpoint stopped")
		}
	}(t.server, t.done)

	t.log.Info().Str("addr", t.boundTo).Msg("notification endpoint listening")
	return nil
}

// Shutdown implements Transport.
func (t *HTTPTransport) Shutdown(timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	joined := true
	if err := t.server.Shutdown(ctx); err != nil {
		t.log.Warn().Err(err).Msg("notification endpoint did not shut down cleanly")
		t.server.Close()
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		joined = false
	}

	t.server = nil
	t.listener = nil
	t.boundTo = ""
	return joined
}

// Running implements Transport.
func (t *HTTPTransport) Running() bool { return t.running.Load() }

// ArtifactExists implements Transport.
func (t *HTTPTransport) ArtifactExists() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener != nil
}
