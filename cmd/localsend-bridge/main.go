// localsend-bridge supervises a LocalSend engine for a game-mode plugin UI.
package main

import (
	"os"

	"github.com/deckshare/localsend-bridge/internal/cli"
)

// Version is injected with -ldflags "-X main.Version=...".
var Version = "v0.1.0-dev"

func main() {
	cli.Version = Version
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
