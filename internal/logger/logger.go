// Package logger provides the engine's leveled logger, backed by zap.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger wraps a zap sugared logger behind a printf-style API.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func New(out io.Writer, level Level, prefix string) *Logger {
	atom := zap.NewAtomicLevelAt(zapLevel(level))

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(writerAdapter{out}),
		atom,
	)

	l := zap.New(core)
	if prefix != "" {
		l = l.Named(prefix)
	}

	return &Logger{
		sugar: l.Sugar(),
		level: atom,
	}
}

func Default() *Logger {
	return New(os.Stderr, LevelInfo, "sharddb")
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevel(),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(zapLevel(level))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered log entries. Call at shutdown.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// writerAdapter lifts an io.Writer into a zapcore.WriteSyncer.
type writerAdapter struct {
	w io.Writer
}

func (wa writerAdapter) Write(p []byte) (int, error) {
	return wa.w.Write(p)
}

func (wa writerAdapter) Sync() error {
	if s, ok := wa.w.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("sync log output: %w", err)
		}
	}
	return nil
}
