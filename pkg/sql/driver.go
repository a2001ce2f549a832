// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverNamePostgres = "postgres"
)

func getDialector(conf DatabaseConfig) gorm.Dialector {
	sslMode := conf.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	timeZone := conf.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		conf.Host, conf.Port, conf.UserName, conf.Password, conf.DBName, sslMode, timeZone)
	return postgres.Open(dsn)
}

// NullLogger silences gorm's internal logging; query errors surface
// through the facades.
type NullLogger struct{}

func (NullLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return NullLogger{} }

func (NullLogger) Info(context.Context, string, ...interface{}) {}

func (NullLogger) Warn(context.Context, string, ...interface{}) {}

func (NullLogger) Error(context.Context, string, ...interface{}) {}

func (NullLogger) Trace(context.Context, time.Time, func() (string, int64), error) {}
