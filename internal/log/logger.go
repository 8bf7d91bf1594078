package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides centralized logging for the whole tool
type Logger struct {
	logger *slog.Logger
	file   *os.File
}

var globalLogger *Logger

// init creates the global logger with console output by default
func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	globalLogger = &Logger{
		logger: slog.New(handler),
		file:   os.Stderr,
	}
}

// SetFileOutput configures the logger to write to the specified file
func SetFileOutput(filename string) error {
	logger, err := NewLogger(filename)
	if err != nil {
		return err
	}

	// Close existing file if it's not a standard stream
	Close()

	globalLogger = logger
	return nil
}

// SetOutput points the logger at an arbitrary writer, mostly useful in tests
func SetOutput(w io.Writer, level slog.Level) {
	Close()
	globalLogger = &Logger{
		logger: slog.New(newHandler(w, level)),
	}
}

// NewLogger creates a new debug logger that appends to the specified file
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	return &Logger{
		logger: slog.New(newHandler(file, slog.LevelDebug)),
		file:   file,
	}, nil
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   slog.TimeKey,
					Value: slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000")),
				}
			}
			return a
		},
	})
}

// Standard logging methods
func Debug(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.logger.Error(msg, args...)
	}
}

// Close closes the log file, if any
func Close() {
	if globalLogger != nil && globalLogger.file != nil && globalLogger.file != os.Stdout && globalLogger.file != os.Stderr {
		globalLogger.file.Close()
		globalLogger.file = nil
	}
}
