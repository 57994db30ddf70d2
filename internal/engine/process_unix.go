//go:build unix

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminate asks the process to exit.
func terminate(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGTERM)
}

// kill forcibly ends the process.
func kill(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGKILL)
}

// processExists checks liveness with signal 0.
func processExists(p *os.Process) bool {
	return unix.Kill(p.Pid, 0) == nil
}
