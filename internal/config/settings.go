package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/util/atomicfile"
)

// Settings are the plugin's operational toggles. They are persisted
// wholesale and feed the engine's launch arguments.
type Settings struct {
	LegacyMode         bool   `json:"legacy_mode"`
	UseMixedScan       bool   `json:"use_mixed_scan"`
	SkipNotify         bool   `json:"skip_notify"`
	MulticastAddress   string `json:"multicast_address"`
	MulticastPort      int    `json:"multicast_port"`
	Pin                string `json:"pin"`
	AutoSave           bool   `json:"auto_save"`
	UseHTTPS           bool   `json:"use_https"`
	NotifyOnDownload   bool   `json:"notify_on_download"`
	SaveReceiveHistory bool   `json:"save_receive_history"`
	DownloadFolder     string `json:"download_folder"`
}

// DefaultSettings returns the factory defaults.
func DefaultSettings(uploadDir string) Settings {
	return Settings{
		LegacyMode:         false,
		UseMixedScan:       true,
		SkipNotify:         false,
		MulticastAddress:   constants.DefaultMulticastAddress,
		MulticastPort:      constants.DefaultMulticastPort,
		Pin:                "",
		AutoSave:           true,
		UseHTTPS:           true,
		NotifyOnDownload:   false,
		SaveReceiveHistory: true,
		DownloadFolder:     uploadDir,
	}
}

// Merge overlays raw onto s. Only keys present in raw change; values are
// coerced leniently so hand-edited files and loosely typed UI payloads
// both load. An invalid multicast port becomes 0 and an empty download
// folder keeps the current one.
func (s Settings) Merge(raw map[string]interface{}) Settings {
	if v, ok := raw["legacy_mode"]; ok {
		s.LegacyMode = truthy(v)
	}
	if v, ok := raw["use_mixed_scan"]; ok {
		s.UseMixedScan = truthy(v)
	}
	if v, ok := raw["skip_notify"]; ok {
		s.SkipNotify = truthy(v)
	}
	if v, ok := raw["multicast_address"]; ok {
		s.MulticastAddress = stringValue(v)
	}
	if v, ok := raw["multicast_port"]; ok {
		s.MulticastPort = intValue(v)
	}
	if v, ok := raw["pin"]; ok {
		s.Pin = stringValue(v)
	}
	if v, ok := raw["auto_save"]; ok {
		s.AutoSave = truthy(v)
	}
	if v, ok := raw["use_https"]; ok {
		s.UseHTTPS = truthy(v)
	}
	if v, ok := raw["notify_on_download"]; ok {
		s.NotifyOnDownload = truthy(v)
	}
	if v, ok := raw["save_receive_history"]; ok {
		s.SaveReceiveHistory = truthy(v)
	}
	if v, ok := raw["download_folder"]; ok {
		if folder := stringValue(v); folder != "" {
			s.DownloadFolder = folder
		}
	}
	return s
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func intValue(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case int:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// SettingsStore persists Settings as an indented JSON object.
type SettingsStore struct {
	path     string
	defaults Settings
}

// NewSettingsStore returns a store at path whose missing fields fall back
// to defaults.
func NewSettingsStore(path string, defaults Settings) *SettingsStore {
	return &SettingsStore{path: path, defaults: defaults}
}

// Path returns the settings file location.
func (s *SettingsStore) Path() string {
	return s.path
}

// Defaults returns the factory defaults for this store.
func (s *SettingsStore) Defaults() Settings {
	return s.defaults
}

// Load reads the settings file. A missing file yields the defaults. On a
// read or parse failure the defaults are returned together with the error.
func (s *SettingsStore) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.defaults, nil
		}
		return s.defaults, fmt.Errorf("failed to read settings: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return s.defaults, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s.defaults.Merge(raw), nil
}

// Save writes settings wholesale.
func (s *SettingsStore) Save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Remove deletes the settings file if present.
func (s *SettingsStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
