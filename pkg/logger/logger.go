// Package logger holds the process-wide slog logger. Level and sink
// are picked up from STREAMFEED_LOG_LEVEL and STREAMFEED_LOG_SINK
// (e.g. "file:/var/log/streamfeed.log") so tests and deployments can
// redirect output without code changes.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var Log *slog.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

func Init() {
	sink := os.Getenv("STREAMFEED_LOG_SINK")
	lvl := strings.ToLower(strings.TrimSpace(os.Getenv("STREAMFEED_LOG_LEVEL")))

	var level slog.Level
	switch lvl {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			Log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
			return
		}
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }
func Info(msg string, args ...any)  { Log.Info(msg, args...) }
func Warn(msg string, args ...any)  { Log.Warn(msg, args...) }
func Error(msg string, args ...any) { Log.Error(msg, args...) }
