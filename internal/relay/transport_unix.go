package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// UnixTransport serves notifications on a Unix domain socket. Each
// connection carries one JSON message and receives one JSON reply.
// Connections are handled one at a time on the accept goroutine.
type UnixTransport struct {
	path string
	poll time.Duration
	log  *logging.Logger

	listener *net.UnixListener
	shutdown atomic.Bool
	running  atomic.Bool
	done     chan struct{}
	mu       sync.Mutex
}

// NewUnixTransport creates a transport for the socket at path.
func NewUnixTransport(path string, log *logging.Logger) *UnixTransport {
	return &UnixTransport{
		path: path,
		poll: constants.RelayAcceptPoll,
		log:  log.Component("relay-unix"),
	}
}

// Kind implements Transport.
func (t *UnixTransport) Kind() string { return "unix" }

// Address implements Transport.
func (t *UnixTransport) Address() string { return t.path }

// Serve implements Transport.
func (t *UnixTransport) Serve(process ProcessFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: t.path, Net: "unix"})
	if err != nil {
		return fmt.Errorf("failed to bind notification socket: %w", err)
	}
	// Closing the listener must not unlink the path; Shutdown owns that.
	listener.SetUnlinkOnClose(false)

	if err := os.Chmod(t.path, 0600); err != nil {
		listener.Close()
		os.Remove(t.path)
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	t.listener = listener
	t.shutdown.Store(false)
	t.running.Store(true)
	t.done = make(chan struct{})
	go t.acceptLoop(listener, process, t.done)

	t.log.Info().Str("socket", t.path).Msg("notification server listening")
	return nil
}

func (t *UnixTransport) acceptLoop(listener *net.UnixListener, process ProcessFunc, done chan struct{}) {
	defer close(done)
	defer t.running.Store(false)
	defer listener.Close()

	for !t.shutdown.Load() {
		if err := listener.SetDeadline(time.Now().Add(t.poll)); err != nil {
			t.log.Error().Err(err).Msg("failed to set accept deadline")
			return
		}
		conn, err := listener.AcceptUnix()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !t.shutdown.Load() {
				t.log.Error().Err(err).Msg("socket accept error")
			}
			return
		}
		t.handleConnection(conn, process)
	}
}

func (t *UnixTransport) handleConnection(conn *net.UnixConn, process ProcessFunc) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(constants.RelayConnTimeout)); err != nil {
		t.log.Warn().Err(err).Msg("failed to set connection deadline")
	}

	// Decode exactly one JSON value; a trailing newline is optional.
	var raw json.RawMessage
	dec := json.NewDecoder(io.LimitReader(conn, constants.RelayMaxMessageSize))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		t.log.Error().Err(err).Msg("failed to parse notification JSON")
		return
	}

	reply, err := process(context.Background(), raw)
	if err != nil {
		return
	}
	if _, err := conn.Write(append(reply, '\n')); err != nil {
		t.log.Debug().Err(err).Msg("failed to write acknowledgment")
	}
}

// Shutdown implements Transport.
func (t *UnixTransport) Shutdown(timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	joined := true
	if t.done != nil {
		t.shutdown.Store(true)
		select {
		case <-t.done:
		case <-time.After(timeout):
			joined = false
			t.log.Warn().Dur("timeout", timeout).Msg("notification listener did not stop in time, abandoning it")
			if t.listener != nil {
				t.listener.Close()
			}
		}
		t.done = nil
		t.listener = nil
	}

	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.Warn().Err(err).Msg("failed to remove socket file")
	}
	return joined
}

// Running implements Transport.
func (t *UnixTransport) Running() bool { return t.running.Load() }

// ArtifactExists implements Transport.
func (t *UnixTransport) ArtifactExists() bool {
	_, err := os.Stat(t.path)
	return err == nil
}
