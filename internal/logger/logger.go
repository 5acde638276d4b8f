// Package logger holds the process-wide structured logger. Services get a
// *slog.Logger through AppContext; these helpers exist for main and for
// code that runs before the context is wired.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pairbond/pairbond/internal/config"
)

var global atomic.Pointer[slog.Logger]

// InitFromConfig builds the global logger from app config. A nil config
// resets to the defaults: info level, text format, no component tag.
// Safe to call multiple times.
func InitFromConfig(c *config.Config) {
	level, format, component := "info", "text", ""
	source := false
	if c != nil {
		level, format = c.Log.Level, c.Log.Format
		component, source = c.Log.Component, c.Log.Source
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: source,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// human-readable timestamps for the text handler
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, time.Now().Format("2006-01-02 15:04:05"))
			}
			return a
		}
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	if component != "" {
		log = log.With("component", component)
	}
	global.Store(log)
}

// L returns the global logger, initializing the default one on first use.
func L() *slog.Logger {
	if log := global.Load(); log != nil {
		return log
	}
	InitFromConfig(nil)
	return global.Load()
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
