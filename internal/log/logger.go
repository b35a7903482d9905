package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger bound to one component. Every record it writes
// carries the component field, including records from derived loggers.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration. A nil Handler writes text to stdout
// at Level. An empty Component leaves the field off.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	logger := slog.New(handler)
	if config.Component != "" {
		logger = logger.With(FieldComponent, config.Component)
	}
	return &Logger{logger}
}

// With returns a logger for the same component with extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// SetDefault installs logger as the slog default. Use a logger without a
// component so callers of the package level functions can name their own.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
