// Package logger provides structured logging for Piramid collections.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with Piramid-specific functionality.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger.
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "piramid").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// CollectionLogger returns a logger scoped to a single named collection,
// the way every Collection-level log line is tagged so multi-collection
// deployments can filter by name.
func (l *Logger) CollectionLogger(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("collection", name).Logger()}
}

// ComponentLogger returns a logger scoped to one internal component
// (wal, checkpoint, compact, index, search, ...).
func (l *Logger) ComponentLogger(component string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", component).Logger()}
}

// LogWALReplay logs a WAL replay pass performed during Open.
func (l *Logger) LogWALReplay(appliedCount int, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("component", "wal").
		Int("applied_count", appliedCount).
		Dur("duration_ms", duration)
	if err != nil {
		event = l.zlog.Error().
			Str("component", "wal").
			Int("applied_count", appliedCount).
			Dur("duration_ms", duration).
			Err(err)
	}
	event.Msg("wal replay completed")
}

// LogCheckpoint logs a checkpoint: pointer table + ANN + metadata persist,
// WAL checkpoint record, WAL-meta write, and rotate.
func (l *Logger) LogCheckpoint(seq uint64, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("component", "checkpoint").
		Uint64("seq", seq).
		Dur("duration_ms", duration)
	if err != nil {
		event = l.zlog.Error().
			Str("component", "checkpoint").
			Uint64("seq", seq).
			Dur("duration_ms", duration).
			Err(err)
	}
	event.Msg("checkpoint completed")
}

// LogCompact logs a compact() pass.
func (l *Logger) LogCompact(stats string, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("component", "compact").
		Str("stats", stats).
		Dur("duration_ms", duration)
	if err != nil {
		event = l.zlog.Error().
			Str("component", "compact").
			Str("stats", stats).
			Dur("duration_ms", duration).
			Err(err)
	}
	event.Msg("compact completed")
}

// LogIndexRebuild logs an ANN index rebuild; Collection Open calls it
// when the index sidecar is missing.
func (l *Logger) LogIndexRebuild(kind string, liveCount int, reason string) {
	l.zlog.Warn().
		Str("component", "index").
		Str("kind", kind).
		Int("live_count", liveCount).
		Str("reason", reason).
		Msg("rebuilding ann index")
}

// LogSearch logs a search operation at debug level; search is on the hot
// path so this never fires at info.
func (l *Logger) LogSearch(k int, resultCount int, duration time.Duration) {
	l.zlog.Debug().
		Str("component", "search").
		Int("k", k).
		Int("result_count", resultCount).
		Dur("duration_ms", duration).
		Msg("search completed")
}

// Global logger instance.
var globalLogger *Logger

// InitGlobalLogger initializes the global logger.
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance, initializing it
// with defaults on first use — the logger Collection.Open falls back to
// when the caller passes nil.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
