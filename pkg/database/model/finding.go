// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"time"
)

const (
	TableNameDeadCodeFinding   = "dead_code_findings"
	TableNameFileChurn         = "file_churns"
	TableNameSemanticAIInsight = "semantic_ai_insights"
)

// DeadCodeFinding mapped from table <dead_code_findings>.
type DeadCodeFinding struct {
	ID              string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	AnalysisID      string    `gorm:"column:analysis_id;not null;size:64;index" json:"analysis_id"`
	RepositoryID    string    `gorm:"column:repository_id;not null;size:128" json:"repository_id"`
	FilePath        string    `gorm:"column:file_path;not null;size:1024" json:"file_path"`
	FunctionName    string    `gorm:"column:function_name;not null;size:256" json:"function_name"`
	LineStart       int       `gorm:"column:line_start" json:"line_start"`
	LineEnd         int       `gorm:"column:line_end" json:"line_end"`
	LineCount       int       `gorm:"column:line_count" json:"line_count"`
	Confidence      float64   `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Evidence        string    `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	SuggestedAction string    `gorm:"column:suggested_action;type:text" json:"suggested_action,omitempty"`
	ImpactScore     int       `gorm:"column:impact_score;not null;default:0" json:"impact_score"`
	IsDismissed     bool      `gorm:"column:is_dismissed;not null;default:false" json:"is_dismissed"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName DeadCodeFinding's table name
func (*DeadCodeFinding) TableName() string {
	return TableNameDeadCodeFinding
}

// FileChurn mapped from table <file_churns>. Unique per
// (analysis_id, file_path).
type FileChurn struct {
	ID            string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	AnalysisID    string     `gorm:"column:analysis_id;not null;size:64;uniqueIndex:uniq_file_churn_analysis_path" json:"analysis_id"`
	FilePath      string     `gorm:"column:file_path;not null;size:1024;uniqueIndex:uniq_file_churn_analysis_path" json:"file_path"`
	Changes90d    int        `gorm:"column:changes_90d;not null;default:0" json:"changes_90d"`
	CoverageRate  *float64   `gorm:"column:coverage_rate" json:"coverage_rate,omitempty"`
	UniqueAuthors int        `gorm:"column:unique_authors;not null;default:0" json:"unique_authors"`
	RiskFactors   StringList `gorm:"column:risk_factors;type:jsonb" json:"risk_factors,omitempty"`
	RiskScore     int        `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName FileChurn's table name
func (*FileChurn) TableName() string {
	return TableNameFileChurn
}

// SemanticAIInsight mapped from table <semantic_ai_insights>.
type SemanticAIInsight struct {
	ID              string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	AnalysisID      string     `gorm:"column:analysis_id;not null;size:64;index" json:"analysis_id"`
	InsightType     string     `gorm:"column:insight_type;not null;size:32" json:"insight_type"`
	Title           string     `gorm:"column:title;not null;size:512" json:"title"`
	Description     string     `gorm:"column:description;type:text" json:"description"`
	Priority        string     `gorm:"column:priority;not null;size:16" json:"priority"`
	AffectedFiles   StringList `gorm:"column:affected_files;type:jsonb" json:"affected_files,omitempty"`
	Evidence        string     `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	SuggestedAction string     `gorm:"column:suggested_action;type:text" json:"suggested_action,omitempty"`
	IsDismissed     bool       `gorm:"column:is_dismissed;not null;default:false" json:"is_dismissed"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName SemanticAIInsight's table name
func (*SemanticAIInsight) TableName() string {
	return TableNameSemanticAIInsight
}
