// Package xlog holds the process-wide logger.
package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the global logger. It is a no-op until Init is called.
var L *zap.SugaredLogger = zap.NewNop().Sugar()

// Init builds the console logger at the requested level ("debug", "info",
// "warn", "error").
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	L = logger.Sugar()
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L.Sync()
}
