package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/thermals/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// ParseLevel maps a configured level name onto a LogLevel.
func ParseLevel(level string) (LogLevel, bool) {
	switch level {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warning", "warn":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// Init initializes the logger with the given level name
func Init(level string, isService bool) {
	InitWithWriter(os.Stdout, level, isService)
}

// InitWithWriter is Init with an explicit output.
func InitWithWriter(out io.Writer, level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = InfoLevel
	}
	SetLogLevel(lvl)
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

type packageLogger struct{}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return packageLogger{}
}

func (packageLogger) Debug() *LogEvent { return Debug() }
func (packageLogger) Info() *LogEvent  { return Info() }
func (packageLogger) Warn() *LogEvent  { return Warn() }
func (packageLogger) Error() *LogEvent { return Error() }

func (packageLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return ErrorWithCode(err)
}
