package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/cli/internal/output"
	"github.com/getmockd/embedhttpd/pkg/cli/internal/parse"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/control"
	"github.com/getmockd/embedhttpd/pkg/control/client"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/message"
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"instances", "inst"},
	Short:   "Manage bridge instances",
}

func newClient() *client.Client {
	return client.New(controlURL)
}

func instanceArg(s string) (message.InstanceID, error) {
	id, err := message.ParseInstanceID(s)
	if err != nil {
		return 0, fmt.Errorf("invalid instance id %q", s)
	}
	return id, nil
}

func printInstance(w io.Writer, info *bridge.InstanceInfo) error {
	return printResult(w, info, func() {
		tw := output.Table(w)
		fmt.Fprintf(tw, "ID:\t%s\n", info.ID)
		if info.Name != "" {
			fmt.Fprintf(tw, "Name:\t%s\n", info.Name)
		}
		fmt.Fprintf(tw, "State:\t%s\n", info.State)
		fmt.Fprintf(tw, "URL:\t%s\n", info.URL)
		fmt.Fprintf(tw, "Pending:\t%d\n", info.Pending)
		fmt.Fprintf(tw, "Handler:\t%s\n", attachedLabel(info.HandlerAttached))
		fmt.Fprintf(tw, "Created:\t%s\n", info.CreatedAt.Format(time.RFC3339))
		_ = tw.Flush()
	})
}

func attachedLabel(attached bool) string {
	if attached {
		return "attached"
	}
	return "none"
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := newClient().ListInstances(cmd.Context())
		if err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, infos, func() {
			if len(infos) == 0 {
				fmt.Fprintln(w, "No instances")
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "ID\tNAME\tSTATE\tURL\tPENDING\tHANDLER")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					info.ID, info.Name, info.State, info.URL, info.Pending, attachedLabel(info.HandlerAttached))
			}
			_ = tw.Flush()
		})
	},
}

var instanceGetCmd = &cobra.Command{
	Use:   "get <instance-id>",
	Short: "Show one instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}
		info, err := newClient().GetInstance(cmd.Context(), id)
		if err != nil {
			return formatAPIError(err)
		}
		return printInstance(cmd.OutOrStdout(), info)
	},
}

var (
	createName     string
	createHost     string
	createPort     int
	createHandler  string
	createStatus   int
	createBody     string
	createHeaders  []string
	createUpstream string
	createTLSAuto  bool
	createCertFile string
	createKeyFile  string
	createStart    bool
)

var instanceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an instance",
	Example: `  # A listener answered by a remote handler attached later
  embedhttpd instance create --port 8080 --start

  # A static responder on an ephemeral port
  embedhttpd instance create --port 0 --handler static --body 'Hello World' --start

  # An HTTPS listener with a generated certificate
  embedhttpd instance create --port 8443 --tls-auto --handler echo --start`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		headers, err := parse.Headers(createHeaders)
		if err != nil {
			return err
		}
		req := &control.CreateInstanceRequest{
			Name:      createName,
			Host:      createHost,
			AutoStart: createStart,
		}
		if cmd.Flags().Changed("port") {
			port := createPort
			req.Port = &port
		}
		if createHandler != "" {
			req.Handler = &handler.Spec{
				Type:     createHandler,
				Status:   createStatus,
				Body:     createBody,
				Headers:  headers,
				Upstream: createUpstream,
			}
		}
		if createTLSAuto || createCertFile != "" || createKeyFile != "" {
			req.TLS = &config.TLSConfig{
				Auto:     createTLSAuto,
				CertFile: createCertFile,
				KeyFile:  createKeyFile,
			}
		}

		info, err := newClient().CreateInstance(cmd.Context(), req)
		if err != nil {
			return formatAPIError(err)
		}
		return printInstance(cmd.OutOrStdout(), info)
	},
}

// lifecycleCmd builds the start and reload subcommands.
func lifecycleCmd(use, short string, call func(c *client.Client, cmd *cobra.Command, id message.InstanceID) (*bridge.InstanceInfo, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <instance-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := instanceArg(args[0])
			if err != nil {
				return err
			}
			info, err := call(newClient(), cmd, id)
			if err != nil {
				return formatAPIError(err)
			}
			return printInstance(cmd.OutOrStdout(), info)
		},
	}
}

var instanceStartCmd = lifecycleCmd("start", "Start accepting connections",
	func(c *client.Client, cmd *cobra.Command, id message.InstanceID) (*bridge.InstanceInfo, error) {
		return c.StartInstance(cmd.Context(), id)
	})

var instanceReloadCmd = lifecycleCmd("reload", "Re-read TLS material of a running instance",
	func(c *client.Client, cmd *cobra.Command, id message.InstanceID) (*bridge.InstanceInfo, error) {
		return c.ReloadInstance(cmd.Context(), id)
	})

var (
	stopGrace   time.Duration
	stopTimeout time.Duration
)

var instanceStopCmd = &cobra.Command{
	Use:   "stop <instance-id>",
	Short: "Stop accepting connections and drain pending requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}
		info, err := newClient().StopInstance(cmd.Context(), id, control.StopRequest{
			GracePeriodMs: stopGrace.Milliseconds(),
			TimeoutMs:     stopTimeout.Milliseconds(),
		})
		if err != nil {
			return formatAPIError(err)
		}
		return printInstance(cmd.OutOrStdout(), info)
	},
}

var removeForce bool

var instanceRemoveCmd = &cobra.Command{
	Use:     "remove <instance-id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove and dispose an instance",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}
		if err := newClient().RemoveInstance(cmd.Context(), id, removeForce); err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, map[string]any{"removed": id}, func() {
			fmt.Fprintf(w, "Removed instance %s\n", id)
		})
	},
}

var instancePendingCmd = &cobra.Command{
	Use:   "pending <instance-id>",
	Short: "List requests waiting for a response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}
		resp, err := newClient().Pending(cmd.Context(), id)
		if err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, resp, func() {
			if resp.Count == 0 {
				fmt.Fprintln(w, "No pending requests")
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "REQUEST ID\tAGE\tDEADLINE")
			now := time.Now()
			for _, p := range resp.Pending {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.RequestID,
					now.Sub(p.CreatedAt).Round(time.Millisecond), p.Deadline.Format(time.RFC3339))
			}
			_ = tw.Flush()
		})
	},
}

var (
	respondStatus   int
	respondHeaders  []string
	respondBody     string
	respondBodyFile string
)

var instanceRespondCmd = &cobra.Command{
	Use:   "respond <instance-id> <request-id>",
	Short: "Answer a pending request",
	Example: `  embedhttpd instance respond 1 9b2f... --status 201 --header 'Content-Type: application/json' --body '{"ok":true}'
  embedhttpd instance respond 1 9b2f... --body-file ./reply.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceArg(args[0])
		if err != nil {
			return err
		}
		headers, err := parse.Headers(respondHeaders)
		if err != nil {
			return err
		}
		body := respondBody
		if respondBodyFile != "" {
			data, err := os.ReadFile(respondBodyFile)
			if err != nil {
				return err
			}
			body = string(data)
		}

		err = newClient().Respond(cmd.Context(), id, args[1], control.RespondRequest{
			Status:  respondStatus,
			Headers: headers,
			Body:    body,
		})
		if err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, map[string]any{"instanceId": id, "requestId": args[1], "responded": true}, func() {
			fmt.Fprintf(w, "Responded to %s\n", args[1])
		})
	},
}

func init() {
	f := instanceCreateCmd.Flags()
	f.StringVar(&createName, "name", "", "Instance name")
	f.StringVar(&createHost, "host", "", "Listen host (default 127.0.0.1)")
	f.IntVarP(&createPort, "port", "p", config.DefaultPort, "Listen port, 0 for an ephemeral port")
	f.StringVar(&createHandler, "handler", "", "Built-in handler: echo, static, upstream, remote, manual")
	f.IntVar(&createStatus, "status", 0, "Status code of the static handler")
	f.StringVar(&createBody, "body", "", "Body of the static handler")
	f.StringArrayVarP(&createHeaders, "header", "H", nil, "Header of the static handler (key:value, repeatable)")
	f.StringVar(&createUpstream, "upstream", "", "Base URL of the upstream handler")
	f.BoolVar(&createTLSAuto, "tls-auto", false, "Serve HTTPS with a generated self-signed certificate")
	f.StringVar(&createCertFile, "cert-file", "", "TLS certificate file")
	f.StringVar(&createKeyFile, "key-file", "", "TLS key file")
	f.BoolVar(&createStart, "start", false, "Start the instance after creating it")

	instanceStopCmd.Flags().DurationVar(&stopGrace, "grace", 0, "Time pending requests get before they are failed (default from server)")
	instanceStopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "Hard limit for closing connections (default from server)")

	instanceRemoveCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Remove even while requests are pending")

	rf := instanceRespondCmd.Flags()
	rf.IntVarP(&respondStatus, "status", "s", 0, "Status code (default 200)")
	rf.StringArrayVarP(&respondHeaders, "header", "H", nil, "Response header (key:value, repeatable)")
	rf.StringVarP(&respondBody, "body", "b", "", "Response body")
	rf.StringVar(&respondBodyFile, "body-file", "", "Read the response body from a file")
	instanceRespondCmd.MarkFlagsMutuallyExclusive("body", "body-file")

	instanceCmd.AddCommand(
		instanceListCmd,
		instanceGetCmd,
		instanceCreateCmd,
		instanceStartCmd,
		instanceStopCmd,
		instanceReloadCmd,
		instanceRemoveCmd,
		instancePendingCmd,
		instanceRespondCmd,
	)
	rootCmd.AddCommand(instanceCmd)
}
