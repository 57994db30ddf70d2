package plugin

import "errors"

var (
	// ErrUnknownTransport is returned for a notification transport other
	// than "unix" or "http".
	ErrUnknownTransport = errors.New("unknown notification transport")
)
