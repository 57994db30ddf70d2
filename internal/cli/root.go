// Package cli provides the command-line interface for localsend-bridge.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deckshare/localsend-bridge/internal/config"
	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/logging"
	"github.com/deckshare/localsend-bridge/internal/plugin"
)

var (
	// Directory overrides
	settingsDir string
	runtimeDir  string
	pluginDir   string
	logDir      string

	// Notification relay
	notifyTransport string
	socketPath      string
	notifyAddr      string

	enginePort int
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version is set by the main package at startup.
var Version = "dev"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Supervise a LocalSend engine and bridge it to a plugin UI",
		Long: `localsend-bridge ` + Version + `

Runs the LocalSend engine as a child process, relays its transfer
notifications to the UI and proxies UI requests to the engine API.

"serve" speaks the plugin host protocol on stdin/stdout. The other
commands operate on the same settings, history and engine config files
and are meant for inspection and debugging.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logger == nil {
				logger = logging.NewLogger(logging.Options{Verbose: verbose})
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsDir, "settings-dir", "", "Settings directory (default $"+config.EnvSettingsDir+")")
	flags.StringVar(&runtimeDir, "runtime-dir", "", "Runtime directory (default $"+config.EnvRuntimeDir+")")
	flags.StringVar(&pluginDir, "plugin-dir", "", "Plugin directory holding bin/"+constants.EngineBinaryName+" (default $"+config.EnvPluginDir+")")
	flags.StringVar(&logDir, "log-dir", "", "Log directory (default $"+config.EnvLogDir+")")
	flags.StringVar(&notifyTransport, "notify-transport", "unix", "Notification transport: unix or http")
	flags.StringVar(&socketPath, "socket-path", constants.DefaultSocketPath, "Unix socket the engine notifies on")
	flags.StringVar(&notifyAddr, "notify-addr", constants.DefaultNotifyAddr, "Loopback address for the http notification transport")
	flags.IntVar(&enginePort, "engine-port", constants.DefaultEnginePort, "Engine API port")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				GetLogger().Info().Str("signal", sig.String()).Msg("received signal, shutting down")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	if logger != nil {
		logger.Close()
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newFolderCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newNotifyCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewLogger(logging.Options{Verbose: verbose})
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// resolvePaths applies the directory flags over the environment.
func resolvePaths() config.Paths {
	paths := config.ResolvePaths()
	if settingsDir != "" {
		paths.SettingsDir = settingsDir
	}
	if runtimeDir != "" {
		paths.RuntimeDir = runtimeDir
	}
	if pluginDir != "" {
		paths.PluginDir = pluginDir
	}
	if logDir != "" {
		paths.LogDir = logDir
	}
	return paths
}

// newPlugin builds the plugin from the global flags.
func newPlugin(log *logging.Logger) (*plugin.Plugin, error) {
	p, err := plugin.New(plugin.Options{
		Paths:           resolvePaths(),
		EnginePort:      enginePort,
		NotifyTransport: notifyTransport,
		SocketPath:      socketPath,
		NotifyAddr:      notifyAddr,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize plugin: %w", err)
	}
	return p, nil
}
