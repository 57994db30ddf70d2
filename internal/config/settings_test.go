package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	defaults := DefaultSettings("/run/uploads")
	store := NewSettingsStore(filepath.Join(t.TempDir(), "plugin-settings.json"), defaults)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != defaults {
		t.Errorf("got %+v, want defaults %+v", got, defaults)
	}
	if !got.UseMixedScan || !got.AutoSave || !got.UseHTTPS || !got.SaveReceiveHistory {
		t.Errorf("unexpected default toggles: %+v", got)
	}
	if got.MulticastAddress != "224.0.0.167" || got.MulticastPort != 53317 {
		t.Errorf("unexpected multicast defaults: %s:%d", got.MulticastAddress, got.MulticastPort)
	}
}

func TestLoadFillsAbsentFieldsAndToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin-settings.json")
	data := `{
  // edited by hand
  "legacy_mode": true,
  "pin": " 1234 ",
  "multicast_port": "not a number",
  "download_folder": "",
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewSettingsStore(path, DefaultSettings("/run/uploads"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.LegacyMode {
		t.Error("legacy_mode not loaded")
	}
	if got.Pin != "1234" {
		t.Errorf("pin = %q, want trimmed 1234", got.Pin)
	}
	if got.MulticastPort != 0 {
		t.Errorf("invalid multicast_port should coerce to 0, got %d", got.MulticastPort)
	}
	if got.DownloadFolder != "/run/uploads" {
		t.Errorf("empty download_folder should keep default, got %q", got.DownloadFolder)
	}
	if !got.UseHTTPS {
		t.Error("absent use_https should fall back to default true")
	}
}

func TestLoadCorruptFileReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin-settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	defaults := DefaultSettings("/u")
	got, err := NewSettingsStore(path, defaults).Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got != defaults {
		t.Errorf("expected defaults on error, got %+v", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings", "plugin-settings.json")
	store := NewSettingsStore(path, DefaultSettings("/u"))

	want := DefaultSettings("/data/Downloads")
	want.Pin = "9999"
	want.SkipNotify = true
	want.MulticastPort = 5000
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Errorf("Remove of missing file should succeed, got %v", err)
	}
}

func TestMergeCoercion(t *testing.T) {
	base := DefaultSettings("/u")
	got := base.Merge(map[string]interface{}{
		"use_https":         "false",
		"auto_save":         float64(0),
		"multicast_port":    float64(6000),
		"skip_notify":       "yes",
		"multicast_address": nil,
	})
	if got.UseHTTPS {
		t.Error(`use_https "false" should be false`)
	}
	if got.AutoSave {
		t.Error("auto_save 0 should be false")
	}
	if got.MulticastPort != 6000 {
		t.Errorf("multicast_port = %d", got.MulticastPort)
	}
	if !got.SkipNotify {
		t.Error(`skip_notify "yes" should be truthy`)
	}
	if got.MulticastAddress != "" {
		t.Errorf("multicast_address = %q, want empty", got.MulticastAddress)
	}
	if got.UseMixedScan != base.UseMixedScan {
		t.Error("absent key must keep current value")
	}
}
