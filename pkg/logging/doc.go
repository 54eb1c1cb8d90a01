// Package logging provides structured logging configuration for embedhttpd.
//
// This package wraps log/slog so every bridge component logs the same way.
// It supports configurable log levels, output formats, and an optional
// secondary sink that receives a JSON copy of every record.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("instance started", "instance", 1, "addr", "127.0.0.1:8080")
//
// # Attributes
//
// Components derive sub-loggers with Component, and per-instance work adds
// the instance ID through ForInstance so log lines can be filtered by
// listener.
//
// # Integration
//
// Components accept a *slog.Logger through an option or setter.
// If no logger is provided they use logging.Nop().
package logging
