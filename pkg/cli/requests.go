package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/embedhttpd/pkg/cli/internal/output"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

var (
	requestsInstance int64
	requestsOutcome  string
	requestsMethod   string
	requestsPath     string
	requestsLimit    int
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Show the request log",
	Example: `  # The last 20 requests of instance 2 that timed out
  embedhttpd requests --instance 2 --outcome timeout --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().ListRequests(cmd.Context(), &requestlog.Filter{
			InstanceID: requestsInstance,
			Outcome:    requestsOutcome,
			Method:     requestsMethod,
			Path:       requestsPath,
			Limit:      requestsLimit,
		})
		if err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, resp, func() {
			if resp.Count == 0 {
				fmt.Fprintln(w, "No requests logged")
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "TIME\tINSTANCE\tMETHOD\tPATH\tSTATUS\tOUTCOME\tDURATION")
			for _, e := range resp.Requests {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%dms\n",
					e.Timestamp.Format(time.TimeOnly), e.InstanceID, e.Method, e.Path,
					e.ResponseStatus, e.Outcome, e.DurationMs)
			}
			_ = tw.Flush()
			fmt.Fprintf(w, "\n%d of %d entries\n", resp.Count, resp.Total)
		})
	},
}

var requestsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the request log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newClient().ClearRequests(cmd.Context())
		if err != nil {
			return formatAPIError(err)
		}
		w := cmd.OutOrStdout()
		return printResult(w, map[string]int{"cleared": n}, func() {
			fmt.Fprintf(w, "Cleared %d entries\n", n)
		})
	},
}

func init() {
	f := requestsCmd.Flags()
	f.Int64Var(&requestsInstance, "instance", 0, "Only requests of this instance")
	f.StringVar(&requestsOutcome, "outcome", "", "Only requests with this outcome: responded, timeout, stopping, orphan, rejected, canceled, error")
	f.StringVar(&requestsMethod, "method", "", "Only requests with this method")
	f.StringVar(&requestsPath, "path", "", "Only requests whose path has this prefix")
	f.IntVarP(&requestsLimit, "limit", "n", 0, "Maximum number of entries")
	requestsCmd.AddCommand(requestsClearCmd)
	rootCmd.AddCommand(requestsCmd)
}
