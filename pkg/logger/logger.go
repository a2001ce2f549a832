// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package logger

import (
	"context"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/conf"
)

// Logger is the leveled logging interface used across the service.
// Implementations must be safe for concurrent use.
type Logger interface {
	Log(level conf.Level, args ...interface{})
	Logf(level conf.Level, format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	// WithContext returns a logger that carries request-scoped fields
	// (request id) extracted from ctx.
	WithContext(ctx context.Context) Logger

	// WithFields returns a logger with the given structured fields attached.
	WithFields(fields map[string]interface{}) Logger
}
