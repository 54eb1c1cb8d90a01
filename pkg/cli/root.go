package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/embedhttpd/pkg/config"
)

// EnvControlURL overrides the default management API URL.
const EnvControlURL = "EMBEDHTTPD_CONTROL_URL"

var (
	// Persistent flags available to all subcommands
	controlURL string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "embedhttpd",
	Short: "embedhttpd bridges embedded HTTP listeners to out-of-band handlers",
	Long: `embedhttpd runs native HTTP listeners whose requests are answered by a
handler living elsewhere: in the same process, behind a WebSocket relay, or
typed in by hand through the management API.

Use "embedhttpd serve" to start the bridge and the other commands to manage
a running bridge through its management API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// defaultControlURL returns $EMBEDHTTPD_CONTROL_URL or the local default.
func defaultControlURL() string {
	if v := os.Getenv(EnvControlURL); v != "" {
		return v
	}
	return "http://" + config.DefaultControlAddr
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlURL, "control-url", defaultControlURL(), "Management API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
