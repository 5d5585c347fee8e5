// Package log provides the node-wide structured logger, backed by
// github.com/luxfi/log in production and a no-op implementation for
// tests, following the teacher's log/noop.go and log/nolog.go pattern.
package log

import (
	luxlog "github.com/luxfi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger re-exports the luxfi/log contract every package in this module
// depends on, so callers never import github.com/luxfi/log directly.
type Logger = luxlog.Logger

// Config controls the production logger's name and file rotation.
type Config struct {
	Name       string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a production Logger named after cfg.Name. When cfg.File is
// set, a lumberjack-backed rotating sink replaces the default one so a
// long-running node doesn't grow an unbounded log file, matching the
// teacher's indirect lumberjack dependency.
func New(cfg Config) Logger {
	logger := luxlog.NewLogger(cfg.Name)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		sink := zapcore.AddSync(rotator)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapcore.InfoLevel)
			return zapcore.NewTee(core, fileCore)
		}))
	}
	return logger
}

// NewNoOp returns a Logger that discards everything, for tests and
// genesis tooling that don't want log side effects.
func NewNoOp() Logger {
	return luxlog.NewNoOpLogger()
}
