package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// newHistoryCmd creates the 'history' command group.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show or edit the receive history",
	}
	historyCmd.AddCommand(newHistoryListCmd())
	historyCmd.AddCommand(newHistoryDeleteCmd())
	historyCmd.AddCommand(newHistoryClearCmd())
	return historyCmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List received transfers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			entries := p.GetReceiveHistory()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No received transfers")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.ID,
					e.Time().Local().Format(time.DateTime),
					e.Title,
					strconv.Itoa(e.FileCount),
					e.FolderPath,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Received", "Title", "Files", "Folder"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			if res := p.DeleteReceiveHistoryItem(args[0]); !res.Success {
				return fmt.Errorf("%s: %s", res.Error, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPlugin(GetLogger())
			if err != nil {
				return err
			}
			p.ClearReceiveHistory()
			fmt.Fprintln(cmd.OutOrStdout(), "Receive history cleared")
			return nil
		},
	}
}
