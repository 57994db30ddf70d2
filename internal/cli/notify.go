package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deckshare/localsend-bridge/internal/relay"
)

// newNotifyCmd creates the 'notify' command group.
func newNotifyCmd() *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Talk to a running notification relay",
	}
	notifyCmd.AddCommand(newNotifySendCmd())
	return notifyCmd
}

func newNotifySendCmd() *cobra.Command {
	var (
		msg      relay.Message
		session  string
		fileID   string
		fileName string
		fileType string
		size     int64
		textOnly bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one notification as the engine would",
		Long: `Send one notification to the relay selected by --notify-transport.

Examples:
  localsend-bridge notify send --type upload_start --session s1 --file-id f1 --name a.jpg --size 4096
  localsend-bridge notify send --type upload_end --session s1 --file-id f1
  localsend-bridge notify send --type info --title Hello --message "from the CLI"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg.Data = map[string]interface{}{}
			setIf := func(key, value string) {
				if value != "" {
					msg.Data[key] = value
				}
			}
			setIf("sessionId", session)
			setIf("fileId", fileID)
			setIf("fileName", fileName)
			setIf("fileType", fileType)
			if size > 0 {
				msg.Data["size"] = size
			}
			msg.IsTextOnly = textOnly

			address := socketPath
			if notifyTransport == "http" {
				address = notifyAddr
			}
			client := relay.NewClient(notifyTransport, address)
			client.SetTimeout(timeout)

			ack, err := client.Send(cmd.Context(), msg)
			if err != nil {
				return fmt.Errorf("failed to notify %s relay at %s: %w", notifyTransport, address, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok=%t type=%s", ack.OK, msg.Type)
			if size > 0 {
				fmt.Fprintf(out, " size=%s", humanize.IBytes(uint64(size)))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&msg.Type, "type", "info", "Notification type: upload_start, upload_end, info")
	flags.StringVar(&msg.Title, "title", "", "Title")
	flags.StringVar(&msg.Message, "message", "", "Message body")
	flags.StringVar(&session, "session", "", "Session id")
	flags.StringVar(&fileID, "file-id", "", "File id")
	flags.StringVar(&fileName, "name", "", "File name")
	flags.StringVar(&fileType, "file-type", "", "MIME type")
	flags.Int64Var(&size, "size", 0, "File size in bytes")
	flags.BoolVar(&textOnly, "text-only", false, "Mark the transfer as a text message")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	return cmd
}
