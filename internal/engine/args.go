// Package engine supervises the transfer engine subprocess.
package engine

import (
	"strconv"

	"github.com/deckshare/localsend-bridge/internal/config"
	"github.com/deckshare/localsend-bridge/internal/constants"
)

// LaunchConfig is everything needed to start the engine once.
type LaunchConfig struct {
	Binary     string
	ConfigPath string
	UploadDir  string
	LogPath    string
	Settings   config.Settings
}

// Args builds the engine's argument vector. Flag spellings are the
// engine's contract, including "Multcast".
func (c LaunchConfig) Args() []string {
	s := c.Settings
	args := []string{
		"-useConfigPath", c.ConfigPath,
		"-log", constants.EngineLogMode,
		"-useDefaultUploadFolder", c.UploadDir,
		"-useReferNetworkInterface", constants.EngineNetworkInterface,
	}
	if s.MulticastAddress != "" {
		args = append(args, "-useMultcastAddress", s.MulticastAddress)
	}
	if s.MulticastPort > 0 {
		args = append(args, "-useMultcastPort", strconv.Itoa(s.MulticastPort))
	}
	if s.LegacyMode {
		args = append(args, "-useLegacyMode")
	}
	if s.UseMixedScan {
		args = append(args, "-useMixedScan")
	}
	if s.SkipNotify {
		args = append(args, "-skipNotify")
	}
	if s.Pin != "" {
		args = append(args, "-usePin", s.Pin)
	}
	args = append(args,
		"-useAutoSave="+strconv.FormatBool(s.AutoSave),
		"-useHttps="+strconv.FormatBool(s.UseHTTPS),
	)
	return args
}
