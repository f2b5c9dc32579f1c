package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent scopes the logger to a named subsystem (e.g.
// "reconciler") rather than a specific entity within it.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHost scopes the logger to one device: every line it emits carries
// device_id, the field hostagent call sites key their own dispatch and
// admin-surface logs on.
func WithHost(deviceID string) zerolog.Logger {
	return Logger.With().Str("device_id", deviceID).Logger()
}

// WithWorkload scopes the logger to one workload_id, for reconciler
// code acting on a single workload across possibly many hosts.
func WithWorkload(workloadID string) zerolog.Logger {
	return Logger.With().Str("workload_id", workloadID).Logger()
}

// WithConsumer scopes the logger to one bus consumer: service identifies
// the owning service's subject prefix, consumer the durable group name
// registered with AddConsumer. Both are static for the consumer's
// lifetime, so binding them once avoids re-stating them on every event.
func WithConsumer(service, consumer string) zerolog.Logger {
	return Logger.With().Str("service", service).Str("consumer", consumer).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
