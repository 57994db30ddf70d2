package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/deckshare/localsend-bridge/internal/bridge"
	"github.com/deckshare/localsend-bridge/internal/events"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/plugin"
)

const (
	maxRequestSize   = 16 << 20
	loopStopTimeout  = 5 * time.Second
	callDrainTimeout = 10 * time.Second
)

// Host reads requests, runs each on its own goroutine and serializes every
// output frame through the scheduler loop.
type Host struct {
	plugin *plugin.Plugin
	loop   *bridge.Loop
	enc    *json.Encoder
	log    *logging.Logger

	calls sync.WaitGroup
}

// New creates a host writing frames to out.
func New(p *plugin.Plugin, out io.Writer, log *logging.Logger) *Host {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Host{
		plugin: p,
		loop:   bridge.NewLoop(log),
		enc:    enc,
		log:    log.Component("host"),
	}
}

// Emit writes an event frame. The event bridge calls it on the loop
// goroutine.
func (h *Host) Emit(ev events.Event) error {
	return h.enc.Encode(ev.ToDTO())
}

// Run serves requests from in until EOF or ctx is cancelled, then unloads
// the plugin and stops the loop.
func (h *Host) Run(ctx context.Context, in io.Reader) error {
	if err := h.loop.Start(); err != nil {
		return err
	}
	h.plugin.Main(h.loop, h)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxRequestSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var err error
serve:
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("host shutting down")
			break serve
		case err = <-readErr:
			if err != nil {
				h.log.Error().Err(err).Msg("failed to read requests")
			}
			break serve
		case line := <-lines:
			h.accept(ctx, line)
		}
	}

	h.drainCalls()
	h.plugin.Unload()
	h.loop.Stop(loopStopTimeout)
	return err
}

func (h *Host) accept(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		h.log.Warn().Err(err).Msg("dropping malformed request")
		return
	}

	h.calls.Add(1)
	go func() {
		defer h.calls.Done()
		h.reply(h.call(ctx, &req))
	}()
}

func (h *Host) drainCalls() {
	done := make(chan struct{})
	go func() {
		h.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(callDrainTimeout):
		h.log.Warn().Msg("abandoning unfinished calls")
	}
}

// call runs one request and never panics.
func (h *Host) call(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("method", req.Method).Interface("panic", r).Msg("call panicked")
			resp = NewErrorResponse(req.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := h.dispatch(ctx, req)
	if err != nil {
		h.log.Warn().Err(err).Str("method", req.Method).Msg("call failed")
		return NewErrorResponse(req.ID, err.Error())
	}
	return NewResultResponse(req.ID, result)
}

func (h *Host) reply(resp *Response) {
	ok := h.loop.Submit(func() {
		if err := h.enc.Encode(resp); err != nil {
			h.log.Error().Err(err).Msg("failed to write response")
		}
	})
	if !ok {
		h.log.Warn().Str("id", string(resp.ID)).Msg("loop stopped, response dropped")
	}
}
