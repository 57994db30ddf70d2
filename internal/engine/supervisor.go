package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

var (
	// ErrBinaryNotFound is returned by Start when the engine executable is absent.
	ErrBinaryNotFound = errors.New("backend binary not found")

	// ErrNotRunning is returned by operations that need a live engine.
	ErrNotRunning = errors.New("backend not running")
)

// State of the supervised process.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is the UI-facing backend status.
type Status struct {
	Running bool   `json:"running"`
	URL     string `json:"url"`
	Error   string `json:"error,omitempty"`
}

// Options configures a Supervisor.
type Options struct {
	// Port is the engine's HTTP API port.
	Port int

	// Launch returns the current launch configuration. It is consulted on
	// every start so that settings changes take effect on restart.
	Launch func() LaunchConfig

	// StopPollInterval and StopPollAttempts bound the graceful stop.
	StopPollInterval time.Duration
	StopPollAttempts int
}

// process is one running engine instance.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // set before done is closed
}

// Supervisor owns the engine subprocess. Start, Stop and Restart are
// serialized; at most one engine runs at a time.
type Supervisor struct {
	mu    sync.Mutex
	state State
	proc  *process
	opts  Options
	log   *logging.Logger
}

// NewSupervisor creates a stopped supervisor.
func NewSupervisor(opts Options, log *logging.Logger) *Supervisor {
	if opts.Port == 0 {
		opts.Port = constants.DefaultEnginePort
	}
	if opts.StopPollInterval == 0 {
		opts.StopPollInterval = constants.StopPollInterval
	}
	if opts.StopPollAttempts == 0 {
		opts.StopPollAttempts = constants.StopPollAttempts
	}
	return &Supervisor{
		state: StateStopped,
		opts:  opts,
		log:   log.Component("engine"),
	}
}

// BaseURL is the engine's loopback API address for the current settings.
func (s *Supervisor) BaseURL() string {
	scheme := "http"
	if s.opts.Launch().Settings.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://127.0.0.1:%d", scheme, s.opts.Port)
}

// Start launches the engine. It is a no-op while one is already running.
func (s *Supervisor) Start() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		return Status{Running: false, URL: s.BaseURL(), Error: err.Error()}, err
	}
	return Status{Running: true, URL: s.BaseURL()}, nil
}

// Stop terminates the engine: SIGTERM, poll for exit, then SIGKILL. It
// is a no-op when nothing is running.
func (s *Supervisor) Stop() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	return Status{Running: false, URL: s.BaseURL()}
}

// Restart stops and starts the engine. A failed start leaves the
// supervisor stopped.
func (s *Supervisor) Restart() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if err := s.startLocked(); err != nil {
		return Status{Running: false, URL: s.BaseURL(), Error: err.Error()}, err
	}
	return Status{Running: true, URL: s.BaseURL()}, nil
}

// Running reports whether the engine process exists and has not exited.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

// Status reports liveness without side effects.
func (s *Supervisor) Status() Status {
	return Status{Running: s.Running(), URL: s.BaseURL()}
}

// State returns the lifecycle state. A process that exited on its own is
// reported as stopped.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning && !s.aliveLocked() {
		return StateStopped
	}
	return s.state
}

func (s *Supervisor) aliveLocked() bool {
	if s.proc == nil {
		return false
	}
	select {
	case <-s.proc.done:
		return false
	default:
	}
	return processExists(s.proc.cmd.Process)
}

func (s *Supervisor) startLocked() error {
	if s.aliveLocked() {
		return nil
	}
	s.proc = nil
	s.state = StateStarting

	launch := s.opts.Launch()
	if _, err := os.Stat(launch.Binary); err != nil {
		s.state = StateStopped
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, launch.Binary)
	}

	for _, dir := range []string{launch.UploadDir, filepath.Dir(launch.LogPath), filepath.Dir(launch.ConfigPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.state = StateStopped
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logFile := &lumberjack.Logger{
		Filename:   launch.LogPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	args := launch.Args()
	// lumberjack opens the file lazily. The banner makes it exist before the
	// engine writes anything.
	banner := fmt.Sprintf("%s starting %s %s\n", time.Now().Format(time.RFC3339), launch.Binary, strings.Join(args, " "))
	if _, err := logFile.Write([]byte(banner)); err != nil {
		logFile.Close()
		s.state = StateStopped
		return fmt.Errorf("failed to open backend log %s: %w", launch.LogPath, err)
	}

	cmd := exec.Command(launch.Binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		logFile.Close()
		s.state = StateStopped
		return fmt.Errorf("failed to start backend: %w", err)
	}

	proc := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		logFile.Close()
		close(proc.done)
		s.log.Info().Int("pid", cmd.Process.Pid).AnErr("exit", proc.err).Msg("localsend backend exited")
	}()

	s.proc = proc
	s.state = StateRunning
	s.log.Info().
		Int("pid", cmd.Process.Pid).
		Str("config", launch.ConfigPath).
		Msg("localsend backend started")
	return nil
}

func (s *Supervisor) stopLocked() {
	if !s.aliveLocked() {
		s.proc = nil
		s.state = StateStopped
		return
	}
	s.state = StateStopping
	proc := s.proc
	pid := proc.cmd.Process.Pid

	if err := terminate(proc.cmd.Process); err != nil {
		s.log.Warn().Err(err).Int("pid", pid).Msg("failed to send terminate signal")
	}

	exited := false
	for i := 0; i < s.opts.StopPollAttempts; i++ {
		select {
		case <-proc.done:
			exited = true
		case <-time.After(s.opts.StopPollInterval):
		}
		if exited {
			break
		}
	}

	if !exited {
		s.log.Warn().Int("pid", pid).Msg("backend did not exit after terminate, killing it")
		if err := kill(proc.cmd.Process); err != nil {
			s.log.Warn().Err(err).Int("pid", pid).Msg("failed to kill backend")
		}
		select {
		case <-proc.done:
		case <-time.After(2 * time.Second):
			s.log.Error().Int("pid", pid).Msg("backend did not exit after kill, abandoning it")
		}
	}

	s.proc = nil
	s.state = StateStopped
	s.log.Info().Msg("localsend backend stopped")
}
