package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// ErrAlreadyRunning is returned by a transport asked to serve twice.
var ErrAlreadyRunning = errors.New("notification server already running")

// Status describes the relay for the UI.
type Status struct {
	Running      bool   `json:"running"`
	SocketPath   string `json:"socket_path"`
	SocketExists bool   `json:"socket_exists"`
	Transport    string `json:"transport"`
}

// Server owns a transport and feeds decoded messages to the handler.
type Server struct {
	mu          sync.Mutex
	transport   Transport
	handler     *Handler
	joinTimeout time.Duration
	log         *logging.Logger
}

// NewServer creates a stopped relay.
func NewServer(transport Transport, handler *Handler, log *logging.Logger) *Server {
	return &Server{
		transport:   transport,
		handler:     handler,
		joinTimeout: constants.RelayJoinTimeout,
		log:         log.Component("relay"),
	}
}

// Start binds the transport. Starting a running relay is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport.Running() {
		s.log.Info().Msg("notification server is already running")
		return nil
	}
	if err := s.transport.Serve(s.process); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			return nil
		}
		s.log.Error().Err(err).Str("transport", s.transport.Kind()).Msg("failed to start notification server")
		return err
	}
	return nil
}

// Stop shuts the transport down within the join timeout. It never blocks
// longer than that, even if the listener goroutine is stuck.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.transport.Running() && !s.transport.ArtifactExists() {
		return
	}
	s.log.Info().Msg("stopping notification server")
	if !s.transport.Shutdown(s.joinTimeout) {
		s.log.Warn().Msg("notification server goroutine abandoned")
	}
	s.log.Info().Msg("notification server stopped")
}

// Running reports whether the relay is serving.
func (s *Server) Running() bool {
	return s.transport.Running()
}

// Status reports the relay state.
func (s *Server) Status() Status {
	return Status{
		Running:      s.transport.Running(),
		SocketPath:   s.transport.Address(),
		SocketExists: s.transport.ArtifactExists(),
		Transport:    s.transport.Kind(),
	}
}

func (s *Server) process(_ context.Context, raw []byte) ([]byte, error) {
	msg, err := Decode(raw)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to parse notification JSON")
		return nil, err
	}
	s.handler.Handle(msg)
	return ackBytes, nil
}
