package bridge

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/events"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// Emitter delivers an event to the UI. It is only ever called from the
// loop goroutine.
type Emitter interface {
	Emit(ev events.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev events.Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ev events.Event) error { return f(ev) }

// EventBridge hands events from producer goroutines to the loop that owns
// the emitter. Producers never block and never call the emitter directly.
type EventBridge struct {
	mu      sync.RWMutex
	loop    *Loop
	emitter Emitter

	dropped  atomic.Int64
	dropWarn rate.Sometimes
	log      *logging.Logger
}

// NewEventBridge creates a detached bridge. Events emitted before Attach
// are dropped.
func NewEventBridge(log *logging.Logger) *EventBridge {
	return &EventBridge{
		dropWarn: rate.Sometimes{First: 1, Interval: constants.DropWarnInterval},
		log:      log.Component("bridge"),
	}
}

// Attach binds the bridge to the loop and emitter that own the UI stream.
func (b *EventBridge) Attach(loop *Loop, emitter Emitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loop = loop
	b.emitter = emitter
	b.log.Debug().Msg("event bridge attached")
}

// Detach unbinds the bridge. Later events are dropped.
func (b *EventBridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loop = nil
	b.emitter = nil
	b.log.Debug().Msg("event bridge detached")
}

// Emit schedules delivery of payload under name. It reports false when the
// event was dropped because no running loop is attached.
func (b *EventBridge) Emit(name events.Name, payload interface{}) bool {
	ev := events.New(name, payload)

	b.mu.RLock()
	loop, emitter := b.loop, b.emitter
	b.mu.RUnlock()

	if loop != nil && emitter != nil {
		ok := loop.Submit(func() {
			if err := emitter.Emit(ev); err != nil {
				b.log.Error().Err(err).Str("event", string(ev.Name)).Msg("failed to emit event")
			}
		})
		if ok {
			return true
		}
	}

	n := b.dropped.Add(1)
	b.dropWarn.Do(func() {
		b.log.Warn().
			Str("event", string(name)).
			Int64("dropped_total", n).
			Msg("event loop not available, dropping event")
	})
	return false
}

// Notify is shorthand for a NameNotification event.
func (b *EventBridge) Notify(n events.Notification) bool {
	return b.Emit(events.NameNotification, n)
}

// Dropped returns how many events were dropped so far.
func (b *EventBridge) Dropped() int64 {
	return b.dropped.Load()
}
