package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/cli/internal/output"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/control"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/metrics"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// shutdownTimeout bounds the management API shutdown.
const shutdownTimeout = 5 * time.Second

var (
	serveConfigFile  string
	serveControlAddr string
	serveLogLevel    string
	serveLogFormat   string
	serveLogFile     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge and its management API",
	Long: `Start the bridge, create the instances declared in the configuration file
and serve the management API until interrupted.

Settings are read from the configuration file, then from EMBEDHTTPD_*
environment variables, then from flags.`,
	Example: `  # Start with defaults (management API on 127.0.0.1:4291)
  embedhttpd serve

  # Start from a configuration file with debug logging
  embedhttpd serve --config embedhttpd.yaml --log-level debug`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServeConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBridge(ctx, cfg, cmd.ErrOrStderr(), nil)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Path to a YAML or JSON configuration file")
	serveCmd.Flags().StringVar(&serveControlAddr, "control-addr", "", "Management API listen address (default "+config.DefaultControlAddr+")")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "", "Log format: text or json")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Also append JSON log records to this file")
	rootCmd.AddCommand(serveCmd)
}

// loadServeConfig layers file, environment and flag settings.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if serveConfigFile != "" {
		loaded, err := config.Load(serveConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("control-addr") {
		cfg.Control.Addr = serveControlAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = serveLogFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = serveLogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runBridge serves cfg until ctx is done. ready, when set, is called once
// the management API is listening and the startup instances exist.
func runBridge(ctx context.Context, cfg *config.Config, stderr io.Writer, ready func(*control.Server)) error {
	logCfg := logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: stderr,
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logCfg.Tee = f
	}
	log := logging.New(logCfg)

	store := requestlog.NewMemoryStore(cfg.Bridge.RequestLogSize)
	registry := metrics.NewRegistry()
	b := bridge.New(
		bridge.WithLogger(log),
		bridge.WithRequestTimeout(cfg.Bridge.RequestTimeout.Std()),
		bridge.WithMaxBodyBytes(cfg.Bridge.MaxBodyBytes),
		bridge.WithStopDefaults(cfg.Bridge.Stop.Options()),
		bridge.WithRequestLog(store),
		bridge.WithMetrics(metrics.NewBridge(registry)),
	)

	api := control.New(b,
		control.WithLogger(log),
		control.WithRequestStore(store),
		control.WithMetricsRegistry(registry),
		control.WithVersion(versionInfo().Version),
	)
	if err := api.Start(cfg.Control.Addr); err != nil {
		_ = b.Close()
		return fmt.Errorf("starting management API: %w", err)
	}

	if err := provisionAll(b, cfg, log); err != nil {
		shutdown(api, b, log)
		return err
	}

	fmt.Fprintf(stderr, "embedhttpd %s: management API on http://%s\n", versionInfo().Version, api.Addr())
	for _, inst := range b.Instances() {
		fmt.Fprintf(stderr, "  instance %s %-10s %s\n", inst.ID(), inst.State(), inst.URL())
	}
	if ready != nil {
		ready(api)
	}

	<-ctx.Done()
	fmt.Fprintln(stderr, "\nShutting down...")
	shutdown(api, b, log)
	return nil
}

func provisionAll(b *bridge.Bridge, cfg *config.Config, log *slog.Logger) error {
	var opts []bridge.InstanceOption
	if cfg.Bridge.MaxConnections > 0 {
		opts = append(opts, bridge.WithMaxConnections(cfg.Bridge.MaxConnections))
	}
	for i := range cfg.Instances {
		ic := &cfg.Instances[i]
		inst, err := control.Provision(b, ic, opts...)
		if err != nil {
			return fmt.Errorf("instance %d (%s): %w", i, ic.Name, err)
		}
		log.Debug("startup instance provisioned", "instance", inst.ID(), "name", ic.Name)
	}
	return nil
}

// shutdown stops the management API first so no new instances appear
// while the bridge disposes the existing ones.
func shutdown(api *control.Server, b *bridge.Bridge, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		output.Warn(os.Stderr, "management API shutdown error: %v", err)
	}
	if err := b.Close(); err != nil {
		log.Error("bridge shutdown error", "error", err)
	}
}
