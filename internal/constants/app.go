package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the fallback directory layout and log file names.
	AppName = "localsend-bridge"

	// EngineBinaryName is the engine executable under <plugin>/bin.
	EngineBinaryName = "localsend-core"
)

// File names inside the plugin directories
const (
	EngineConfigFileName = "localsend.yaml"
	SettingsFileName     = "plugin-settings.json"
	HistoryFileName      = "receive-history.json"
	EngineLogFileName    = "localsend-backend.log"
	BridgeLogFileName    = "localsend-bridge.log"
	UploadsDirName       = "uploads"
	ArchivesDirName      = "archives"
)

// Engine defaults
const (
	// DefaultEnginePort is the port the engine serves its HTTP API on.
	DefaultEnginePort = 53317

	// DefaultMulticastAddress / DefaultMulticastPort are the LocalSend discovery defaults.
	DefaultMulticastAddress = "224.0.0.167"
	DefaultMulticastPort    = 53317

	// EngineLogMode is passed verbatim as the engine's -log value.
	EngineLogMode = "prod"

	// EngineNetworkInterface selects all interfaces.
	EngineNetworkInterface = "*"
)

// Engine process lifecycle
const (
	// StopPollInterval and StopPollAttempts bound the graceful stop to ~2s
	// before the process is killed.
	StopPollInterval = 100 * time.Millisecond
	StopPollAttempts = 20
)

// Notification relay
const (
	// DefaultSocketPath is the well-known notification socket the engine dials.
	DefaultSocketPath = "/tmp/localsend-notify.sock"

	// DefaultNotifyAddr is the loopback listen address for the HTTP transport.
	DefaultNotifyAddr = "127.0.0.1:53318"

	// RelayAcceptPoll bounds each accept so the shutdown flag is seen promptly.
	RelayAcceptPoll = 1 * time.Second

	// RelayJoinTimeout bounds how long Stop waits for the accept loop.
	RelayJoinTimeout = 3 * time.Second

	// RelayConnTimeout is the per-connection read/write deadline.
	RelayConnTimeout = 10 * time.Second

	// RelayMaxMessageSize caps a single notification message.
	RelayMaxMessageSize = 1 << 20
)

// HTTP proxy
const (
	// ProxyMaxRetries is the number of retries after the first attempt.
	ProxyMaxRetries = 3

	// ProxyBackoffBase is multiplied by 2^attempt between retries.
	ProxyBackoffBase = 500 * time.Millisecond

	// ProxyRequestTimeout is the per-attempt timeout.
	ProxyRequestTimeout = 30 * time.Second

	// HTTP transport settings for the loopback engine API
	HTTPIdleConnTimeout     = 90 * time.Second
	HTTPTLSHandshakeTimeout = 10 * time.Second
	HTTPDialTimeout         = 10 * time.Second
)

// History
const (
	// MaxHistoryEntries caps the receive history, newest first.
	MaxHistoryEntries = 100

	// DefaultHistoryTitle is used when a notification carries no title.
	DefaultHistoryTitle = "File Received"

	// DefaultTextTitle is used for text-only transfers without a title.
	DefaultTextTitle = "Text Received"
)

// Event bridge
const (
	// DropWarnInterval throttles "event dropped" warnings.
	DropWarnInterval = 5 * time.Second
)

// Archives
const (
	// CopyBufferSize is the pooled buffer size used while packing folders.
	CopyBufferSize = 256 * 1024
)
