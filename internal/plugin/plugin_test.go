package plugin

import (
	"archive/zip"
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deckshare/localsend-bridge/internal/bridge"
	"github.com/deckshare/localsend-bridge/internal/config"
	"github.com/deckshare/localsend-bridge/internal/engine"
	"github.com/deckshare/localsend-bridge/internal/events"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/pathutil"
	"github.com/deckshare/localsend-bridge/internal/relay"
	"github.com/deckshare/localsend-bridge/internal/sessions"
)

// countingTransport fails the test's expectations if the network is touched.
type countingTransport struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTransport) RoundTrip(*nethttp.Request) (*nethttp.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil, errors.New("unexpected network call")
}

func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "lsb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func newTestPlugin(t *testing.T, rt nethttp.RoundTripper) (*Plugin, config.Paths) {
	t.Helper()
	dir := shortTempDir(t)
	paths := config.Paths{
		SettingsDir: filepath.Join(dir, "settings"),
		RuntimeDir:  filepath.Join(dir, "runtime"),
		PluginDir:   filepath.Join(dir, "plugin"),
		LogDir:      filepath.Join(dir, "logs"),
	}
	p, err := New(Options{
		Paths:        paths,
		SocketPath:   filepath.Join(dir, "n.sock"),
		RoundTripper: rt,
		Engine:       engine.Options{StopPollInterval: 20 * time.Millisecond},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(p.Unload)
	return p, paths
}

func installEngine(t *testing.T, paths config.Paths) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	bin := paths.EngineBinary()
	if err := os.MkdirAll(filepath.Dir(bin), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 30\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	_, err := New(Options{Paths: config.Paths{SettingsDir: t.TempDir()}, NotifyTransport: "carrier-pigeon"}, logging.NewNop())
	if !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("err = %v, want ErrUnknownTransport", err)
	}
}

func TestProxyWithoutBackend(t *testing.T) {
	rt := &countingTransport{}
	p, _ := newTestPlugin(t, rt)

	res := p.ProxyGet(context.Background(), "/api/localsend/v2/info")
	if res.Status != 503 {
		t.Errorf("status = %d, want 503", res.Status)
	}
	data, ok := res.Data.(map[string]interface{})
	if !ok || data["error"] != "Backend not running" {
		t.Errorf("data = %#v", res.Data)
	}
	if rt.calls != 0 {
		t.Errorf("network calls = %d, want 0", rt.calls)
	}
}

func TestStartBackendWithoutBinary(t *testing.T) {
	p, _ := newTestPlugin(t, &countingTransport{})

	status := p.StartBackend()
	if status.Running {
		t.Fatal("backend should not be running")
	}
	if !strings.Contains(status.Error, "not found") {
		t.Errorf("error = %q", status.Error)
	}
	if status.URL != "https://127.0.0.1:53317" {
		t.Errorf("url = %q", status.URL)
	}
	// The relay is started regardless of the engine outcome.
	if !p.GetNotifyServerStatus().Running {
		t.Error("relay should be running")
	}
}

func TestBackendConfigRoundTrip(t *testing.T) {
	p, paths := newTestPlugin(t, &countingTransport{})

	if err := os.MkdirAll(paths.SettingsDir, 0755); err != nil {
		t.Fatal(err)
	}
	original := "# custom\nalias: Old\nport: 53317\n"
	if err := os.WriteFile(paths.EngineConfigFile(), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	download, err := pathutil.ResolveAbsolutePath(filepath.Join(shortTempDir(t), "Downloads"))
	if err != nil {
		t.Fatal(err)
	}
	res := p.SetBackendConfig(context.Background(), map[string]interface{}{
		"alias":           "  Steam Deck  ",
		"pin":             "1234",
		"use_https":       false,
		"multicast_port":  "not-a-port",
		"download_folder": download,
	})
	if !res.Success || res.Restarted || res.Running {
		t.Fatalf("unexpected result %+v", res)
	}

	data, err := os.ReadFile(paths.EngineConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "# custom\nalias: Steam Deck\nport: 53317\n"; got != want {
		t.Errorf("config = %q, want %q", got, want)
	}
	if _, err := os.Stat(download); err != nil {
		t.Errorf("download folder not created: %v", err)
	}

	cfg := p.GetBackendConfig()
	if cfg.Alias != "Steam Deck" || cfg.Pin != "1234" || cfg.UseHTTPS || cfg.MulticastPort != 0 || cfg.DownloadFolder != download {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.UseMixedScan {
		t.Error("absent keys should keep their values")
	}
	if got := p.GetBackendStatus().URL; got != "http://127.0.0.1:53317" {
		t.Errorf("url after disabling https = %s", got)
	}

	// Settings survive a reload.
	reloaded, err := config.NewSettingsStore(paths.SettingsFile(), config.DefaultSettings("")).Load()
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Pin != "1234" || reloaded.DownloadFolder != download {
		t.Errorf("persisted settings %+v", reloaded)
	}

	// An empty download folder keeps the current one.
	p.SetBackendConfig(context.Background(), map[string]interface{}{"download_folder": ""})
	if p.Settings().DownloadFolder != download {
		t.Errorf("download folder = %q", p.Settings().DownloadFolder)
	}
}

func TestSetBackendConfigRestartsRunningEngine(t *testing.T) {
	p, paths := newTestPlugin(t, &countingTransport{})
	installEngine(t, paths)

	if status := p.StartBackend(); !status.Running {
		t.Fatalf("StartBackend failed: %+v", status)
	}
	res := p.SetBackendConfig(context.Background(), map[string]interface{}{"alias": "Deck"})
	if !res.Success || !res.Restarted || !res.Running {
		t.Errorf("unexpected result %+v", res)
	}

	if status := p.StopBackend(); status.Running {
		t.Error("StopBackend left the engine running")
	}
}

func TestReceiveHistoryOperations(t *testing.T) {
	p, _ := newTestPlugin(t, &countingTransport{})

	if res := p.DeleteReceiveHistoryItem("missing"); res.Success || res.Error != "Item not found" {
		t.Errorf("unexpected result %+v", res)
	}

	entry, err := p.history.Add("/uploads/s1", []string{"a.txt"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.GetReceiveHistory(); len(got) != 1 || got[0].ID != entry.ID {
		t.Fatalf("history = %+v", got)
	}
	if res := p.DeleteReceiveHistoryItem(entry.ID); !res.Success {
		t.Errorf("delete failed: %+v", res)
	}

	p.history.Add("/uploads/s2", nil, "")
	if res := p.ClearReceiveHistory(); !res.Success {
		t.Errorf("clear failed: %+v", res)
	}
	if len(p.GetReceiveHistory()) != 0 {
		t.Error("history not cleared")
	}
}

func TestListFolderFiles(t *testing.T) {
	p, _ := newTestPlugin(t, &countingTransport{})

	res := p.ListFolderFiles(filepath.Join(t.TempDir(), "missing"))
	if res.Success || res.Error != "Invalid folder path" || res.Files == nil || len(res.Files) != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	folder := filepath.Join(t.TempDir(), "Photos")
	os.MkdirAll(filepath.Join(folder, "sub"), 0755)
	os.WriteFile(filepath.Join(folder, "a.jpg"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(folder, "sub", "b.jpg"), []byte("b"), 0644)

	res = p.ListFolderFiles(folder)
	if !res.Success || res.Count != 2 || res.FolderName != "Photos" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPrepareFolderUpload(t *testing.T) {
	p, paths := newTestPlugin(t, &countingTransport{})

	folder := filepath.Join(t.TempDir(), "Saves")
	os.MkdirAll(folder, 0755)
	os.WriteFile(filepath.Join(folder, "slot1.sav"), []byte("progress"), 0644)

	res := p.PrepareFolderUpload(context.Background(), folder)
	if !res.Success {
		t.Fatalf("prepare failed: %+v", res)
	}
	if res.FileName != "Saves.zip" || res.FileType != "application/zip" || res.Size == 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if filepath.Dir(res.Path) != paths.ArchivesDir() {
		t.Errorf("archive written to %s", res.Path)
	}

	zr, err := zip.OpenReader(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "Saves/slot1.sav" {
		t.Errorf("unexpected archive entries")
	}

	if res := p.PrepareFolderUpload(context.Background(), ""); res.Success || res.Error != "Invalid folder path" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFactoryReset(t *testing.T) {
	p, paths := newTestPlugin(t, &countingTransport{})

	p.SetBackendConfig(context.Background(), map[string]interface{}{"alias": "Deck", "pin": "9999"})
	p.history.Add("/uploads/s1", []string{"a"}, "")
	p.sessions.Start("s1", "f1", sessions.FileInfo{FileName: "a"})

	res := p.FactoryReset()
	if !res.Success || res.Message != "Factory reset completed" {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, path := range []string{paths.SettingsFile(), paths.EngineConfigFile(), paths.HistoryFile()} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still exists", path)
		}
	}
	if got := p.Settings(); got != config.DefaultSettings(paths.DefaultUploadDir()) {
		t.Errorf("settings not reset: %+v", got)
	}
	if len(p.GetReceiveHistory()) != 0 || len(p.GetUploadSessions()) != 0 {
		t.Error("in-memory state not cleared")
	}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMainRelaysNotifications(t *testing.T) {
	p, _ := newTestPlugin(t, &countingTransport{})

	loop := bridge.NewLoop(logging.NewNop())
	if err := loop.Start(); err != nil {
		t.Fatal(err)
	}
	defer loop.Stop(time.Second)

	emitter := &recordingEmitter{}
	p.Main(loop, emitter)

	status := p.GetNotifyServerStatus()
	if !status.Running || !status.SocketExists || status.Transport != "unix" {
		t.Fatalf("unexpected relay status %+v", status)
	}

	client := relay.NewClient(status.Transport, status.SocketPath)
	_, err := client.Send(context.Background(), relay.Message{
		Type: "upload_start",
		Data: map[string]interface{}{"sessionId": "s1", "fileId": "f1", "fileName": "a.txt", "size": float64(3)},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	views := p.GetUploadSessions()
	if len(views) != 1 || views[0].SessionID != "s1" {
		t.Fatalf("sessions = %+v", views)
	}
	deadline := time.Now().Add(2 * time.Second)
	for emitter.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if emitter.count() == 0 {
		t.Error("no event reached the emitter")
	}

	if res := p.ClearUploadSessions(); !res.Success || len(p.GetUploadSessions()) != 0 {
		t.Error("sessions not cleared")
	}

	p.Unload()
	if p.GetNotifyServerStatus().SocketExists {
		t.Error("socket left behind after Unload")
	}
}
