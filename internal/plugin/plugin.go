// Package plugin is the UI-facing surface of the bridge. Every operation
// returns a structured result; nothing here returns a bare error or panics
// toward the UI.
package plugin

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/deckshare/localsend-bridge/internal/bridge"
	"github.com/deckshare/localsend-bridge/internal/config"
	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/engine"
	"github.com/deckshare/localsend-bridge/internal/files"
	"github.com/deckshare/localsend-bridge/internal/history"
	bridgehttp "github.com/deckshare/localsend-bridge/internal/http"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/pathutil"
	"github.com/deckshare/localsend-bridge/internal/relay"
	"github.com/deckshare/localsend-bridge/internal/sessions"
)

const (
	invalidFolderMessage = "Invalid folder path"
	itemNotFoundMessage  = "Item not found"
	factoryResetMessage  = "Factory reset completed"
)

// Options configures a Plugin.
type Options struct {
	Paths config.Paths

	// EnginePort is the engine's API port. Zero means the default.
	EnginePort int

	// NotifyTransport is "unix" (default) or "http".
	NotifyTransport string
	SocketPath      string
	NotifyAddr      string

	// RoundTripper overrides the engine transport. Tests use it to stub
	// the network.
	RoundTripper nethttp.RoundTripper
	RetryPolicy  *bridgehttp.RetryPolicy

	// Engine tunes the supervisor. Port and Launch are filled in by New.
	Engine engine.Options
}

// Plugin owns every component and the current settings.
type Plugin struct {
	paths config.Paths
	log   *logging.Logger

	engineConfig *config.ConfigFile
	store        *config.SettingsStore

	mu       sync.RWMutex
	settings config.Settings

	history  *history.Store
	sessions *sessions.Tracker
	bridge   *bridge.EventBridge
	relay    *relay.Server
	engine   *engine.Supervisor
	proxy    *bridgehttp.Proxy
}

// New builds a plugin, loading settings and history from disk. Load
// failures are logged and the defaults are used.
func New(opts Options, log *logging.Logger) (*Plugin, error) {
	p := &Plugin{
		paths:        opts.Paths,
		log:          log.Component("plugin"),
		engineConfig: config.NewConfigFile(opts.Paths.EngineConfigFile()),
		store:        config.NewSettingsStore(opts.Paths.SettingsFile(), config.DefaultSettings(opts.Paths.DefaultUploadDir())),
		history:      history.NewStore(opts.Paths.HistoryFile()),
		sessions:     sessions.NewTracker(),
		bridge:       bridge.NewEventBridge(log),
	}

	settings, err := p.store.Load()
	if err != nil {
		p.log.Warn().Err(err).Msg("using default settings")
	}
	p.settings = settings

	if err := p.history.Load(); err != nil {
		p.log.Warn().Err(err).Msg("starting with empty receive history")
	}

	transport, err := newTransport(opts, log)
	if err != nil {
		return nil, err
	}
	handler := relay.NewHandler(p.sessions, p.history, p.bridge, p.preferences, log)
	p.relay = relay.NewServer(transport, handler, log)

	supOpts := opts.Engine
	supOpts.Port = opts.EnginePort
	supOpts.Launch = p.launchConfig
	p.engine = engine.NewSupervisor(supOpts, log)

	rt := opts.RoundTripper
	if rt == nil {
		rt = bridgehttp.NewEngineTransport()
	}
	policy := bridgehttp.DefaultRetryPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	p.proxy = bridgehttp.NewProxy(p.engine, rt, policy, log)

	if err := p.paths.EnsureDirectories(p.uploadDir()); err != nil {
		p.log.Warn().Err(err).Msg("failed to create plugin directories")
	}
	return p, nil
}

func newTransport(opts Options, log *logging.Logger) (relay.Transport, error) {
	switch opts.NotifyTransport {
	case "", "unix":
		path := opts.SocketPath
		if path == "" {
			path = constants.DefaultSocketPath
		}
		return relay.NewUnixTransport(path, log), nil
	case "http":
		addr := opts.NotifyAddr
		if addr == "" {
			addr = constants.DefaultNotifyAddr
		}
		return relay.NewHTTPTransport(addr, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.NotifyTransport)
	}
}

// Settings returns a copy of the current settings.
func (p *Plugin) Settings() config.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

func (p *Plugin) uploadDir() string {
	return p.Settings().DownloadFolder
}

func (p *Plugin) preferences() relay.Preferences {
	s := p.Settings()
	return relay.Preferences{
		UploadDir:        s.DownloadFolder,
		SaveHistory:      s.SaveReceiveHistory,
		NotifyOnDownload: s.NotifyOnDownload,
	}
}

func (p *Plugin) launchConfig() engine.LaunchConfig {
	s := p.Settings()
	return engine.LaunchConfig{
		Binary:     p.paths.EngineBinary(),
		ConfigPath: p.paths.EngineConfigFile(),
		UploadDir:  s.DownloadFolder,
		LogPath:    p.paths.EngineLogFile(),
		Settings:   s,
	}
}

// Main attaches the event bridge to the scheduler loop and starts the
// relay. A relay bind failure is logged; the plugin stays usable.
func (p *Plugin) Main(loop *bridge.Loop, emitter bridge.Emitter) {
	p.bridge.Attach(loop, emitter)
	if err := p.relay.Start(); err != nil {
		p.log.Error().Err(err).Msg("notification relay unavailable")
	}
	p.log.Info().Msg("localsend plugin loaded")
}

// Unload stops the engine and the relay and detaches the bridge.
func (p *Plugin) Unload() {
	p.engine.Stop()
	p.relay.Stop()
	p.bridge.Detach()
	p.log.Info().Msg("localsend plugin unloaded")
}

// StartBackend starts the relay if needed and then the engine.
func (p *Plugin) StartBackend() engine.Status {
	if err := p.relay.Start(); err != nil {
		return engine.Status{Running: false, URL: p.engine.BaseURL(), Error: err.Error()}
	}
	if err := p.paths.EnsureDirectories(p.uploadDir()); err != nil {
		p.log.Warn().Err(err).Msg("failed to create plugin directories")
	}
	status, err := p.engine.Start()
	if err != nil {
		p.log.Error().Err(err).Msg("failed to start backend")
	}
	return status
}

// StopBackend stops the engine. The relay keeps running.
func (p *Plugin) StopBackend() engine.Status {
	return p.engine.Stop()
}

// GetBackendStatus reports engine liveness.
func (p *Plugin) GetBackendStatus() engine.Status {
	return p.engine.Status()
}

// ProxyGet forwards a GET to the engine API.
func (p *Plugin) ProxyGet(ctx context.Context, path string) bridgehttp.Result {
	return p.proxy.Get(ctx, path)
}

// ProxyPost forwards a POST to the engine API. A raw body takes precedence
// over jsonData.
func (p *Plugin) ProxyPost(ctx context.Context, path string, jsonData interface{}, body []byte) bridgehttp.Result {
	return p.proxy.Post(ctx, path, jsonData, body)
}

// GetUploadSessions lists tracked files, newest first.
func (p *Plugin) GetUploadSessions() []sessions.FileView {
	return p.sessions.List()
}

// ClearUploadSessions drops every tracked session.
func (p *Plugin) ClearUploadSessions() Result {
	p.sessions.Clear()
	return Result{Success: true}
}

// GetNotifyServerStatus reports the relay state.
func (p *Plugin) GetNotifyServerStatus() relay.Status {
	return p.relay.Status()
}

// GetReceiveHistory returns the receive history, newest first.
func (p *Plugin) GetReceiveHistory() []history.Entry {
	return p.history.List()
}

// ClearReceiveHistory empties the history. A failed flush is logged.
func (p *Plugin) ClearReceiveHistory() Result {
	if err := p.history.Clear(); err != nil {
		p.log.Error().Err(err).Msg("failed to save receive history")
	}
	p.log.Info().Msg("receive history cleared")
	return Result{Success: true}
}

// DeleteReceiveHistoryItem removes one history entry by id.
func (p *Plugin) DeleteReceiveHistoryItem(id string) Result {
	err := p.history.Delete(id)
	if errors.Is(err, history.ErrNotFound) {
		return Result{Success: false, Error: itemNotFoundMessage}
	}
	if err != nil {
		p.log.Error().Err(err).Msg("failed to save receive history")
	}
	p.log.Info().Str("id", id).Msg("deleted receive history item")
	return Result{Success: true}
}

// GetBackendConfig merges the engine alias with the plugin settings.
func (p *Plugin) GetBackendConfig() BackendConfig {
	values, err := p.engineConfig.Read()
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to read engine config")
	}
	alias := ""
	if v, ok := values["alias"]; ok && v != nil {
		alias = strings.TrimSpace(fmt.Sprint(v))
	}
	return BackendConfig{Alias: alias, Settings: p.Settings()}
}

// SetBackendConfig patches the alias into the engine config, applies and
// persists settings, and restarts the engine if it was running.
func (p *Plugin) SetBackendConfig(ctx context.Context, raw map[string]interface{}) SetConfigResult {
	if v, ok := raw["alias"]; ok {
		alias := ""
		if v != nil {
			alias = strings.TrimSpace(fmt.Sprint(v))
		}
		if err := p.engineConfig.Update(ctx, config.Change{Key: "alias", Value: alias}); err != nil {
			p.log.Error().Err(err).Msg("failed to update engine config")
			return SetConfigResult{Success: false, Error: err.Error(), Running: p.engine.Running()}
		}
	}

	if folder, ok := raw["download_folder"].(string); ok && strings.TrimSpace(folder) != "" {
		resolved, err := pathutil.ResolveAbsolutePath(strings.TrimSpace(folder))
		if err != nil {
			return SetConfigResult{Success: false, Error: err.Error(), Running: p.engine.Running()}
		}
		raw = withValue(raw, "download_folder", resolved)
	}

	p.mu.Lock()
	p.settings = p.settings.Merge(raw)
	settings := p.settings
	p.mu.Unlock()

	if err := p.store.Save(settings); err != nil {
		p.log.Error().Err(err).Msg("failed to save settings")
	}
	if err := p.paths.EnsureDirectories(settings.DownloadFolder); err != nil {
		p.log.Warn().Err(err).Msg("failed to create plugin directories")
	}

	if !p.engine.Running() {
		return SetConfigResult{Success: true, Running: false}
	}
	if _, err := p.engine.Restart(); err != nil {
		p.log.Error().Err(err).Msg("failed to restart backend")
		return SetConfigResult{Success: false, Error: err.Error(), Running: p.engine.Running()}
	}
	return SetConfigResult{Success: true, Restarted: true, Running: p.engine.Running()}
}

// withValue returns a copy of raw with key set.
func withValue(raw map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	out[key] = value
	return out
}

// ListFolderFiles lists every regular file below folder.
func (p *Plugin) ListFolderFiles(folder string) FolderListing {
	listing, err := files.ListFolder(folder)
	if errors.Is(err, files.ErrInvalidFolder) {
		return FolderListing{Success: false, Error: invalidFolderMessage, Files: []files.Entry{}}
	}
	if err != nil {
		p.log.Error().Err(err).Msg("failed to list folder files")
		return FolderListing{Success: false, Error: err.Error(), Files: []files.Entry{}}
	}
	return FolderListing{
		Success:    true,
		Files:      listing.Files,
		FolderName: listing.FolderName,
		Count:      len(listing.Files),
	}
}

// PrepareFolderUpload zips folder into the archives directory so the UI
// can send it as a single file.
func (p *Plugin) PrepareFolderUpload(ctx context.Context, folder string) PreparedUpload {
	archive, err := files.PrepareFolderUpload(ctx, folder, p.paths.ArchivesDir(), nil)
	if errors.Is(err, files.ErrInvalidFolder) {
		return PreparedUpload{Success: false, Error: invalidFolderMessage}
	}
	if err != nil {
		p.log.Error().Err(err).Msg("failed to prepare folder upload")
		return PreparedUpload{Success: false, Error: err.Error()}
	}
	return PreparedUpload{
		Success:  true,
		Path:     archive.Path,
		FileName: archive.FileName,
		Size:     archive.Size,
		FileType: archive.FileType,
	}
}

// FactoryReset stops the engine, deletes every persisted file and returns
// all in-memory state to defaults.
func (p *Plugin) FactoryReset() Result {
	if p.engine.Running() {
		p.engine.Stop()
	}

	for _, remove := range []struct {
		name string
		fn   func() error
	}{
		{"settings", p.store.Remove},
		{"engine config", p.engineConfig.Remove},
		{"receive history", p.history.Reset},
	} {
		if err := remove.fn(); err != nil {
			p.log.Error().Err(err).Str("file", remove.name).Msg("factory reset failed")
			return Result{Success: false, Error: err.Error()}
		}
	}

	p.mu.Lock()
	p.settings = p.store.Defaults()
	p.mu.Unlock()
	p.sessions.Clear()

	p.log.Info().Msg("factory reset completed")
	return Result{Success: true, Message: factoryResetMessage}
}
