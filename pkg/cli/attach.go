package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay/remote"
)

var (
	attachUpstream string
	attachEcho     bool
	attachLogLevel string
)

var attachCmd = &cobra.Command{
	Use:   "attach <instance-id>",
	Short: "Act as the remote handler of an instance",
	Long: `Attach to an instance over the WebSocket relay and answer its requests
until interrupted, either by forwarding them to an upstream HTTP server or by
echoing them back.`,
	Example: `  # Forward requests of instance 1 to a local development server
  embedhttpd attach 1 --upstream http://localhost:3000

  # Echo every request back to the caller
  embedhttpd attach 1 --echo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}

		var h handler.Handler
		switch {
		case attachUpstream != "":
			h, err = handler.New(&handler.Spec{Type: handler.TypeUpstream, Upstream: attachUpstream})
			if err != nil {
				return err
			}
		case attachEcho:
			h = handler.Echo()
		default:
			return errors.New("one of --upstream or --echo is required")
		}

		log := logging.New(logging.Config{
			Level:  logging.ParseLevel(attachLogLevel),
			Output: cmd.ErrOrStderr(),
		})
		stderr := cmd.ErrOrStderr()
		rc, err := remote.NewClient(newClient().RelayURL(id), h,
			remote.WithClientLogger(log),
			remote.WithOnAttach(func(id message.InstanceID) {
				fmt.Fprintf(stderr, "Attached to instance %s, press Ctrl+C to detach\n", id)
			}),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := rc.Run(ctx); err != nil {
			if errors.Is(err, remote.ErrAttachRejected) {
				return fmt.Errorf("instance %s already has a handler attached", id)
			}
			return err
		}
		fmt.Fprintf(stderr, "Detached after %d requests (%d failed)\n", rc.Served(), rc.Failed())
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachUpstream, "upstream", "", "Forward requests to this base URL")
	attachCmd.Flags().BoolVar(&attachEcho, "echo", false, "Echo requests back")
	attachCmd.Flags().StringVar(&attachLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	attachCmd.MarkFlagsMutuallyExclusive("upstream", "echo")
	rootCmd.AddCommand(attachCmd)
}
