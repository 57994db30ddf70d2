// Package bridge moves events produced on background goroutines onto the
// single goroutine that owns the UI event stream.
package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/deckshare/localsend-bridge/internal/logging"
)

// Task is a unit of work run on the loop goroutine.
type Task func()

type loopState int

const (
	loopIdle loopState = iota
	loopRunning
	loopClosed
)

// ErrLoopClosed is returned when starting a loop that was already stopped.
var ErrLoopClosed = errors.New("loop closed")

// Loop is a single-goroutine scheduler with an unbounded FIFO run queue.
// Submit never blocks; tasks run one at a time in submission order.
type Loop struct {
	mu    sync.Mutex
	state loopState
	queue []Task
	wake  chan struct{}
	done  chan struct{}
	log   *logging.Logger
}

// NewLoop creates a loop that has not started yet.
func NewLoop(log *logging.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log.Component("loop"),
	}
}

// Start launches the loop goroutine. Starting a running loop is a no-op.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case loopRunning:
		return nil
	case loopClosed:
		return ErrLoopClosed
	}
	l.state = loopRunning
	go l.run()
	return nil
}

// Running reports whether Submit currently accepts tasks.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == loopRunning
}

// Submit enqueues a task. It returns false, and drops the task, when the
// loop is not running.
func (l *Loop) Submit(task Task) bool {
	l.mu.Lock()
	if l.state != loopRunning {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop refuses new tasks, lets already queued tasks finish and waits for
// the loop goroutine up to timeout. It reports whether the goroutine exited
// in time; a stuck task is abandoned rather than blocking the caller.
func (l *Loop) Stop(timeout time.Duration) bool {
	l.mu.Lock()
	switch l.state {
	case loopIdle:
		l.state = loopClosed
		l.mu.Unlock()
		return true
	case loopClosed:
		l.mu.Unlock()
		return true
	}
	l.state = loopClosed
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case <-l.done:
		return true
	case <-time.After(timeout):
		l.log.Warn().Dur("timeout", timeout).Msg("loop did not stop in time, abandoning it")
		return false
	}
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.state == loopClosed
		l.mu.Unlock()

		for _, task := range batch {
			l.runTask(task)
		}

		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}
		<-l.wake
	}
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}
