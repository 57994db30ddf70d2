package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deckshare/localsend-bridge/internal/host"
	"github.com/deckshare/localsend-bridge/internal/logging"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var noLogFile bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plugin host protocol on stdin/stdout",
		Long: `Serve reads one JSON request per line from stdin and writes responses
and UI events as JSON lines to stdout. Logs go to stderr and to
localsend-bridge.log in the log directory.

The notification relay starts immediately; the engine starts on the
first start_backend call. EOF on stdin or SIGTERM unloads the plugin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := logging.Options{Verbose: verbose}
			if !noLogFile {
				opts.FilePath = resolvePaths().BridgeLogFile()
			}
			logger = logging.NewLogger(opts)

			p, err := newPlugin(logger)
			if err != nil {
				return err
			}
			logger.Info().Str("version", Version).Msg("localsend bridge starting")
			return host.New(p, os.Stdout, logger).Run(cmd.Context(), os.Stdin)
		},
	}

	cmd.Flags().BoolVar(&noLogFile, "no-log-file", false, "Log to stderr only")
	return cmd
}
