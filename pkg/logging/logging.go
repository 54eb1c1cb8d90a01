package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents a log level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Attribute keys shared across components.
const (
	KeyComponent = "component"
	KeyInstance  = "instance"
	KeyRequestID = "request_id"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or json).
	Format Format

	// Output is the writer to send logs to. Defaults to os.Stderr.
	Output io.Writer

	// Tee, when set, receives a JSON copy of every record at the same level.
	Tee io.Writer

	// AddSource adds source file and line to log entries.
	AddSource bool
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New creates a new slog.Logger with the given configuration.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	default:
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	if cfg.Tee != nil {
		handler = NewMultiHandler(handler, slog.NewJSONHandler(cfg.Tee, opts))
	}

	return slog.New(handler)
}

// NewWithLevel creates a logger with the specified level using text format.
func NewWithLevel(level Level) *slog.Logger {
	return New(Config{
		Level:  level,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// Nop returns a no-op logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component returns a child logger tagged with the component name.
// A nil parent yields a tagged no-op logger.
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		parent = Nop()
	}
	return parent.With(KeyComponent, name)
}

// ForInstance returns a child logger tagged with an instance ID.
func ForInstance(parent *slog.Logger, instanceID int64) *slog.Logger {
	if parent == nil {
		parent = Nop()
	}
	return parent.With(KeyInstance, instanceID)
}

// ParseLevel parses a log level string, ignoring case.
// Valid values: "debug", "info", "warn", "warning", "error".
// Returns LevelInfo if the string is not recognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat parses a log format string, ignoring case.
// Returns FormatText if the string is not recognized.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
