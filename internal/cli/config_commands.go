package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deckshare/localsend-bridge/internal/config"
	ustrings "github.com/deckshare/localsend-bridge/internal/util/strings"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the engine alias and plugin settings",
		Long: `Configuration commands.

Commands:
  get   - Display the alias and every setting
  set   - Change settings (key=value ...)
  path  - Show the files the bridge reads and writes`,
	}

	configCmd.AddCommand(newConfigGetCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func newConfigGetCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Display the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			cfg := p.GetBackendConfig()

			if asJSON {
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			values, err := configValues(cfg)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, fmt.Sprint(values[k])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// configValues flattens the config through its JSON form so the table
// shows the same keys the UI uses.
func configValues(cfg interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Change the alias or settings",
		Long: `Set one or more configuration keys. Quotes around a value are removed;
boolean and numeric settings accept true/false and integers.

Examples:
  localsend-bridge config set alias="Steam Deck"
  localsend-bridge config set use_https=false multicast_port=53317`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseAssignments(args)
			if err != nil {
				return err
			}
			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			res := p.SetBackendConfig(cmd.Context(), raw)
			if !res.Success {
				return fmt.Errorf("failed to apply configuration: %s", res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", ustrings.Count(int64(len(raw)), "key"))
			return nil
		},
	}
}

func parseAssignments(args []string) (map[string]interface{}, error) {
	raw := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		value = strings.TrimSpace(value)
		// Unquote only. A pin like 0420 must stay a string.
		if s, ok := config.ParseValue(value).(string); ok {
			value = s
		}
		raw[key] = value
	}
	return raw, nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			paths := resolvePaths()
			rows := [][]string{
				{"engine config", paths.EngineConfigFile()},
				{"settings", paths.SettingsFile()},
				{"receive history", paths.HistoryFile()},
				{"engine binary", paths.EngineBinary()},
				{"engine log", paths.EngineLogFile()},
				{"bridge log", paths.BridgeLogFile()},
				{"default uploads", paths.DefaultUploadDir()},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Path"}, rows, nil))
		},
	}
}
