// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"github.com/AMD-AGI/Primus-CodeLens/pkg/sql"
	"gorm.io/gorm"
)

// BaseFacade is the base structure for all Facades, providing DB access capability
type BaseFacade struct {
	db *gorm.DB
}

// getDB returns the database connection, falling back to the default pool
// when none was injected
func (f *BaseFacade) getDB() *gorm.DB {
	if f.db != nil {
		return f.db
	}
	return sql.GetDefaultDB()
}

// WithDB returns a copy of the facade bound to the given connection.
// Used for transactions and tests.
func (f *BaseFacade) WithDB(db *gorm.DB) BaseFacade {
	return BaseFacade{db: db}
}
