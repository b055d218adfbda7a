// Package logger wraps a zap sugared logger with key/value helpers.
package logger

import (
    "strings"

    "go.uber.org/zap"
)

type Logger struct {
    SugaredLogger *zap.SugaredLogger
}

// New builds a production JSON logger for "prod"/"production" and a
// development console logger for anything else.
func New(mode string) (*Logger, error) {
    var cfg zap.Config
    switch strings.ToLower(mode) {
    case "prod", "production":
        cfg = zap.NewProductionConfig()
    default:
        cfg = zap.NewDevelopmentConfig()
        cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
    }
    zl, err := cfg.Build()
    if err != nil {
        return nil, err
    }
    return &Logger{SugaredLogger: zl.Sugar()}, nil
}

// Nop returns a logger that discards everything.  Used by tests.
func Nop() *Logger {
    return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
    _ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
    l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
    l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
    l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
    l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
    l.SugaredLogger.Fatalw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
    return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}
