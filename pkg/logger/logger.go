package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	// log is the global logger instance
	log zerolog.Logger

	// out is where log lines are written
	out io.Writer = os.Stderr

	// format is the active output format
	format = FormatConsole

	// DefaultLevel is the default logging level
	DefaultLevel = "info"

	// levels maps string level names to zerolog levels
	levels = map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"fatal":    zerolog.FatalLevel,
		"panic":    zerolog.PanicLevel,
		"disabled": zerolog.Disabled,
	}
)

func init() {
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(levels[DefaultLevel])

	rebuild()
}

// rebuild recreates the global logger from the current output and format
func rebuild() {
	var w io.Writer = out
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					return strings.ToUpper(ll)
				}
				return "???"
			},
		}
	}
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel changes the logging level
func SetLevel(levelStr string) error {
	level, exists := levels[strings.ToLower(levelStr)]
	if !exists {
		return fmt.Errorf("unknown log level '%s'", levelStr)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// SetFormat switches between human readable console output and JSON lines
func SetFormat(f string) error {
	switch strings.ToLower(f) {
	case FormatConsole, "":
		format = FormatConsole
	case FormatJSON:
		format = FormatJSON
	default:
		return fmt.Errorf("unknown log format '%s'", f)
	}
	rebuild()
	return nil
}

// SetOutput redirects log output, mainly for tests
func SetOutput(w io.Writer) {
	out = w
	rebuild()
}

// Debug logs a debug message with optional key-value pairs
func Debug(msg string, keysAndValues ...interface{}) {
	logEvent(log.Debug(), msg, keysAndValues...)
}

// Info logs an info message with optional key-value pairs
func Info(msg string, keysAndValues ...interface{}) {
	logEvent(log.Info(), msg, keysAndValues...)
}

// Warn logs a warning message with optional key-value pairs
func Warn(msg string, keysAndValues ...interface{}) {
	logEvent(log.Warn(), msg, keysAndValues...)
}

// Error logs an error message with optional key-value pairs
func Error(msg string, keysAndValues ...interface{}) {
	logEvent(log.Error(), msg, keysAndValues...)
}

func logEvent(event *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			event = event.Interface("orphaned", keysAndValues[i])
			break
		}

		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}

		// errors need AnErr, Interface would render them as {}
		if err, ok := keysAndValues[i+1].(error); ok {
			event = event.AnErr(key, err)
		} else {
			event = event.Interface(key, keysAndValues[i+1])
		}
	}

	event.Msg(msg)
}
