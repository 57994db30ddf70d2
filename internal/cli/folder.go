package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deckshare/localsend-bridge/internal/files"
	"github.com/deckshare/localsend-bridge/internal/pathutil"
	"github.com/deckshare/localsend-bridge/internal/progress"
	ustrings "github.com/deckshare/localsend-bridge/internal/util/strings"
)

// newFolderCmd creates the 'folder' command group.
func newFolderCmd() *cobra.Command {
	folderCmd := &cobra.Command{
		Use:   "folder",
		Short: "Inspect or pack folders for sending",
	}
	folderCmd.AddCommand(newFolderListCmd())
	folderCmd.AddCommand(newFolderPackCmd())
	return folderCmd
}

func newFolderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <folder>",
		Short: "List every file below a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := pathutil.ResolveAbsolutePath(args[0])
			if err != nil {
				return err
			}
			listing, err := files.ListFolder(folder)
			if err != nil {
				return err
			}

			var total int64
			rows := make([][]string, 0, len(listing.Files))
			for _, f := range listing.Files {
				total += f.Size
				rows = append(rows, []string{f.DisplayPath, humanize.IBytes(uint64(f.Size))})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"File", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "%s, %s\n", ustrings.Count(int64(len(listing.Files)), "file"), humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

func newFolderPackCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "pack <folder>",
		Short: "Zip a folder the way the UI does before sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = resolvePaths().ArchivesDir()
			}

			folder, err := pathutil.ResolveAbsolutePath(args[0])
			if err != nil {
				return err
			}

			reporter := progress.ForTerminal()
			archive, err := files.PrepareFolderUpload(cmd.Context(), folder, outDir, progress.Func(reporter, "packing"))
			reporter.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", archive.Path, humanize.IBytes(uint64(archive.Size)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default <runtime>/archives)")
	return cmd
}
