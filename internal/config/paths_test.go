package config

import (
	"path/filepath"
	"testing"
)

func TestResolvePathsFromEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvSettingsDir, filepath.Join(root, "settings"))
	t.Setenv(EnvRuntimeDir, filepath.Join(root, "runtime"))
	t.Setenv(EnvPluginDir, filepath.Join(root, "plugin"))
	t.Setenv(EnvLogDir, filepath.Join(root, "logs"))

	p := ResolvePaths()
	if got := p.EngineConfigFile(); got != filepath.Join(root, "settings", "localsend.yaml") {
		t.Errorf("EngineConfigFile = %s", got)
	}
	if got := p.EngineBinary(); got != filepath.Join(root, "plugin", "bin", "localsend-core") {
		t.Errorf("EngineBinary = %s", got)
	}
	if got := p.DefaultUploadDir(); got != filepath.Join(root, "runtime", "uploads") {
		t.Errorf("DefaultUploadDir = %s", got)
	}
	if got := p.EngineLogFile(); got != filepath.Join(root, "logs", "localsend-backend.log") {
		t.Errorf("EngineLogFile = %s", got)
	}

	if err := p.EnsureDirectories(p.DefaultUploadDir()); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
}

func TestResolvePathsFallback(t *testing.T) {
	t.Setenv(EnvSettingsDir, "")
	t.Setenv(EnvRuntimeDir, "")
	t.Setenv(EnvLogDir, "")

	p := ResolvePaths()
	if p.SettingsDir == "" || p.RuntimeDir == "" || p.LogDir == "" || p.PluginDir == "" {
		t.Errorf("fallback left a directory empty: %+v", p)
	}
}
