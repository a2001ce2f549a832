// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"time"
)

const TableNameIssue = "issues"

// Issue mapped from table <issues>. One detected code problem, owned by
// its analysis and cascade-deleted with it.
type Issue struct {
	ID           string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	AnalysisID   string    `gorm:"column:analysis_id;not null;size:64;index" json:"analysis_id"`
	RepositoryID string    `gorm:"column:repository_id;not null;size:128;index" json:"repository_id"`
	Type         string    `gorm:"column:type;not null;size:64" json:"type"`
	Severity     string    `gorm:"column:severity;not null;size:16" json:"severity"`
	Title        string    `gorm:"column:title;not null;size:512" json:"title"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	FilePath     string    `gorm:"column:file_path;size:1024" json:"file_path,omitempty"`
	LineStart    int       `gorm:"column:line_start" json:"line_start,omitempty"`
	LineEnd      int       `gorm:"column:line_end" json:"line_end,omitempty"`
	Status       string    `gorm:"column:status;not null;size:16;default:'open'" json:"status"`
	Confidence   float64   `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Metadata     ExtType   `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName Issue's table name
func (*Issue) TableName() string {
	return TableNameIssue
}
