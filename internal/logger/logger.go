package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/funnyzak/botfake/internal/config"
)

// Logger logging interface
type Logger interface {
	// Debug logs a Debug event.
	Debug(msg string, fields ...interface{})
	// Info logs an Info event.
	Info(msg string, fields ...interface{})
	// Warn logs a Warn event.
	Warn(msg string, fields ...interface{})
	// Error logs an Error event.
	Error(msg string, fields ...interface{})
	// Fatal logs a Fatal event and terminates the program.
	Fatal(msg string, fields ...interface{})
}

type zerologAdapter struct {
	logger *zerolog.Logger
}

// addFields adds key-value pairs to a zerolog event
func (z *zerologAdapter) addFields(event *zerolog.Event, fields ...interface{}) *zerolog.Event {
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}

		switch v := fields[i+1].(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		case error:
			event = event.AnErr(key, v)
		case []string:
			event = event.Strs(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	return event
}

func (z *zerologAdapter) emit(event *zerolog.Event, msg string, fields []interface{}) {
	z.addFields(event, fields...).Msg(msg)
}

func (z *zerologAdapter) Debug(msg string, fields ...interface{}) { z.emit(z.logger.Debug(), msg, fields) }
func (z *zerologAdapter) Info(msg string, fields ...interface{})  { z.emit(z.logger.Info(), msg, fields) }
func (z *zerologAdapter) Warn(msg string, fields ...interface{})  { z.emit(z.logger.Warn(), msg, fields) }
func (z *zerologAdapter) Error(msg string, fields ...interface{}) { z.emit(z.logger.Error(), msg, fields) }
func (z *zerologAdapter) Fatal(msg string, fields ...interface{}) { z.emit(z.logger.Fatal(), msg, fields) }

// WithScenario returns a logger that tags every event with the scenario
// name. Loggers not created by this package are returned unchanged.
func WithScenario(l Logger, scenario string) Logger {
	z, ok := l.(*zerologAdapter)
	if !ok {
		return l
	}
	child := z.logger.With().Str("scenario", scenario).Logger()
	return &zerologAdapter{logger: &child}
}

// NewLogger creates new logger instance writing to stdout, plus a rotating
// file when file logging is enabled.
func NewLogger(cfg *config.LogConfig, outputMode string) Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(outputMode) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	writers := []io.Writer{out}
	if cfg.FileLogging.Enable {
		// File output stays JSON
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FileLogging.Path,
			MaxSize:    cfg.FileLogging.MaxSizeMB,
			MaxBackups: cfg.FileLogging.MaxBackups,
			MaxAge:     cfg.FileLogging.MaxAgeDays,
			Compress:   cfg.FileLogging.Compress,
		})
	}

	return New(cfg.Level, io.MultiWriter(writers...))
}

// New creates a JSON logger writing to w.
func New(level string, w io.Writer) Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(logLevel).With().Timestamp().Logger()
	return &zerologAdapter{logger: &logger}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	logger := zerolog.Nop()
	return &zerologAdapter{logger: &logger}
}
