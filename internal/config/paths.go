// Package config provides the bridge's directory layout, the engine's
// line-oriented config document and the plugin settings store.
package config

import (
	"os"
	"path/filepath"

	"github.com/deckshare/localsend-bridge/internal/constants"
)

// Environment variables supplied by the plugin host.
const (
	EnvSettingsDir = "DECKY_PLUGIN_SETTINGS_DIR"
	EnvRuntimeDir  = "DECKY_PLUGIN_RUNTIME_DIR"
	EnvPluginDir   = "DECKY_PLUGIN_DIR"
	EnvLogDir      = "DECKY_PLUGIN_LOG_DIR"
)

// Paths is the set of directories the bridge works in.
type Paths struct {
	SettingsDir string
	RuntimeDir  string
	PluginDir   string
	LogDir      string
}

// ResolvePaths reads the plugin host environment and falls back to
// ~/.config/localsend-bridge/{settings,runtime,logs} for anything unset.
// PluginDir falls back to the directory holding the running executable.
func ResolvePaths() Paths {
	base := baseDirectory()
	p := Paths{
		SettingsDir: os.Getenv(EnvSettingsDir),
		RuntimeDir:  os.Getenv(EnvRuntimeDir),
		PluginDir:   os.Getenv(EnvPluginDir),
		LogDir:      os.Getenv(EnvLogDir),
	}
	if p.SettingsDir == "" {
		p.SettingsDir = filepath.Join(base, "settings")
	}
	if p.RuntimeDir == "" {
		p.RuntimeDir = filepath.Join(base, "runtime")
	}
	if p.LogDir == "" {
		p.LogDir = filepath.Join(base, "logs")
	}
	if p.PluginDir == "" {
		p.PluginDir = executableDirectory(base)
	}
	return p
}

func baseDirectory() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// executableDirectory returns the parent of the directory containing the
// executable, so that <plugin>/bin/<engine> sits next to the bridge binary.
func executableDirectory(fallback string) string {
	exe, err := os.Executable()
	if err != nil {
		return fallback
	}
	return filepath.Dir(filepath.Dir(exe))
}

// EngineConfigFile is the engine's YAML-ish config.
func (p Paths) EngineConfigFile() string {
	return filepath.Join(p.SettingsDir, constants.EngineConfigFileName)
}

// SettingsFile is the plugin settings JSON document.
func (p Paths) SettingsFile() string {
	return filepath.Join(p.SettingsDir, constants.SettingsFileName)
}

// HistoryFile is the receive history JSON array.
func (p Paths) HistoryFile() string {
	return filepath.Join(p.SettingsDir, constants.HistoryFileName)
}

// EngineBinary is the engine executable.
func (p Paths) EngineBinary() string {
	return filepath.Join(p.PluginDir, "bin", constants.EngineBinaryName)
}

// EngineLogFile receives the engine's stdout and stderr.
func (p Paths) EngineLogFile() string {
	return filepath.Join(p.LogDir, constants.EngineLogFileName)
}

// BridgeLogFile receives the bridge's own structured log.
func (p Paths) BridgeLogFile() string {
	return filepath.Join(p.LogDir, constants.BridgeLogFileName)
}

// DefaultUploadDir is where the engine stores received files unless the
// user picked another download folder.
func (p Paths) DefaultUploadDir() string {
	return filepath.Join(p.RuntimeDir, constants.UploadsDirName)
}

// ArchivesDir holds zip archives prepared for folder uploads.
func (p Paths) ArchivesDir() string {
	return filepath.Join(p.RuntimeDir, constants.ArchivesDirName)
}

// EnsureDirectories creates the settings and log directories plus the
// given upload directory.
func (p Paths) EnsureDirectories(uploadDir string) error {
	for _, dir := range []string{p.SettingsDir, uploadDir, p.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
