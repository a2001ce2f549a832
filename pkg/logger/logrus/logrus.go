// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package logrus

import (
	"context"
	"io"
	"os"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/conf"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// requestIDKey is the context key the router middleware stores the
// request id under.
const requestIDKey = "request_id"

// Wrapper adapts logrus to the logger.Logger interface.
type Wrapper struct {
	entry *logrus.Entry
}

func NewLogrusWrapper(cfg *conf.LogConfig) (*Wrapper, error) {
	if cfg == nil {
		cfg = conf.DefaultConfig()
	}
	l := logrus.New()
	l.SetLevel(toLogrusLevel(cfg.Level))
	switch cfg.Formatter {
	case conf.JSONFormater:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotated)
	}
	l.SetOutput(out)

	return &Wrapper{entry: logrus.NewEntry(l)}, nil
}

func toLogrusLevel(level conf.Level) logrus.Level {
	switch level {
	case conf.TraceLevel:
		return logrus.TraceLevel
	case conf.DebugLevel:
		return logrus.DebugLevel
	case conf.InfoLevel:
		return logrus.InfoLevel
	case conf.WarnLevel:
		return logrus.WarnLevel
	case conf.ErrorLevel:
		return logrus.ErrorLevel
	case conf.FatalLevel:
		return logrus.FatalLevel
	}
	return logrus.InfoLevel
}

func (w *Wrapper) Log(level conf.Level, args ...interface{}) {
	w.entry.Log(toLogrusLevel(level), args...)
}

func (w *Wrapper) Logf(level conf.Level, format string, args ...interface{}) {
	w.entry.Logf(toLogrusLevel(level), format, args...)
}

func (w *Wrapper) Trace(args ...interface{}) { w.Log(conf.TraceLevel, args...) }
func (w *Wrapper) Tracef(format string, args ...interface{}) {
	w.Logf(conf.TraceLevel, format, args...)
}
func (w *Wrapper) Debug(args ...interface{}) { w.Log(conf.DebugLevel, args...) }
func (w *Wrapper) Debugf(format string, args ...interface{}) {
	w.Logf(conf.DebugLevel, format, args...)
}
func (w *Wrapper) Info(args ...interface{}) { w.Log(conf.InfoLevel, args...) }
func (w *Wrapper) Infof(format string, args ...interface{}) {
	w.Logf(conf.InfoLevel, format, args...)
}
func (w *Wrapper) Warn(args ...interface{}) { w.Log(conf.WarnLevel, args...) }
func (w *Wrapper) Warnf(format string, args ...interface{}) {
	w.Logf(conf.WarnLevel, format, args...)
}
func (w *Wrapper) Error(args ...interface{}) { w.Log(conf.ErrorLevel, args...) }
func (w *Wrapper) Errorf(format string, args ...interface{}) {
	w.Logf(conf.ErrorLevel, format, args...)
}

func (w *Wrapper) WithContext(ctx context.Context) logger.Logger {
	if ctx == nil {
		return w
	}
	if v := ctx.Value(requestIDKey); v != nil {
		return &Wrapper{entry: w.entry.WithField(requestIDKey, v)}
	}
	return w
}

func (w *Wrapper) WithFields(fields map[string]interface{}) logger.Logger {
	return &Wrapper{entry: w.entry.WithFields(logrus.Fields(fields))}
}
