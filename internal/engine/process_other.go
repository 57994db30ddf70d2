//go:build !unix

package engine

import (
	"os"
)

func terminate(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

func kill(p *os.Process) error {
	return p.Kill()
}

// processExists has no portable liveness check here; the wait goroutine is
// authoritative.
func processExists(p *os.Process) bool {
	return true
}
