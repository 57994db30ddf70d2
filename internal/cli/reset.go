package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newResetCmd creates the 'reset' command.
func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Factory reset: delete settings, engine config and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all settings, the engine config and the receive history?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			res := p.FactoryReset()
			if !res.Success {
				return errors.New(res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
