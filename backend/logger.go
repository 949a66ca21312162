// backend/logger.go
package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger 初始化一个全局的 slog JSON 格式记录器
func InitLogger() {
	slog.SetDefault(newLogger(os.Stdout, os.Getenv("SUPAUPLOAD_LOG_LEVEL")))
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
