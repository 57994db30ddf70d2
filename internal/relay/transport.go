package relay

import (
	"context"
	"time"
)

// ProcessFunc decodes and handles one raw message and returns the reply.
// A non-nil error means the message was malformed and the connection or
// request should be dropped without a reply.
type ProcessFunc func(ctx context.Context, raw []byte) ([]byte, error)

// Transport is a local channel the engine pushes notifications over.
type Transport interface {
	// Kind names the transport ("unix" or "http").
	Kind() string

	// Address is the socket path or listen address.
	Address() string

	// Serve binds synchronously and then serves in the background. A bind
	// failure is returned and nothing keeps running.
	Serve(process ProcessFunc) error

	// Shutdown stops serving and waits up to timeout for the serving
	// goroutine. It reports whether the goroutine exited in time and
	// always removes the transport artifact.
	Shutdown(timeout time.Duration) bool

	// Running reports whether the serving goroutine is alive.
	Running() bool

	// ArtifactExists reports whether the socket file exists or the
	// listener is bound.
	ArtifactExists() bool
}
