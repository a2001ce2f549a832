// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"gorm.io/gorm"
)

// IssueFacade provides database operations for detected issues
type IssueFacade struct {
	BaseFacade
}

// NewIssueFacade creates a new issue facade
func NewIssueFacade() *IssueFacade {
	return &IssueFacade{}
}

// NewIssueFacadeWithDB creates a facade bound to a specific connection
func NewIssueFacadeWithDB(db *gorm.DB) *IssueFacade {
	return &IssueFacade{BaseFacade: BaseFacade{db: db}}
}

// ListIssuesOptions defines filters for listing issues
type ListIssuesOptions struct {
	Severity string
	Type     string
	Status   string
	Limit    int
	Offset   int
}

// CreateBatch inserts issues in a single statement
func (f *IssueFacade) CreateBatch(ctx context.Context, issues []*model.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	return f.getDB().WithContext(ctx).Create(issues).Error
}

// ListByAnalysis lists issues for an analysis with optional filters
func (f *IssueFacade) ListByAnalysis(ctx context.Context, analysisID string, opts ListIssuesOptions) ([]*model.Issue, int64, error) {
	var issues []*model.Issue
	var total int64

	query := f.getDB().WithContext(ctx).
		Model(&model.Issue{}).
		Where("analysis_id = ?", analysisID)

	if opts.Severity != "" {
		query = query.Where("severity = ?", opts.Severity)
	}
	if opts.Type != "" {
		query = query.Where("type = ?", opts.Type)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if err := query.Order("severity ASC, created_at DESC").Find(&issues).Error; err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

// UpdateStatus moves a single issue between open, acknowledged, and
// resolved
func (f *IssueFacade) UpdateStatus(ctx context.Context, issueID, status string) error {
	result := f.getDB().WithContext(ctx).
		Model(&model.Issue{}).
		Where("id = ?", issueID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountBySeverity returns per-severity issue counts for an analysis
func (f *IssueFacade) CountBySeverity(ctx context.Context, analysisID string) (map[string]int, error) {
	type severityCount struct {
		Severity string
		Count    int
	}
	var counts []severityCount
	err := f.getDB().WithContext(ctx).
		Model(&model.Issue{}).
		Select("severity, COUNT(*) as count").
		Where("analysis_id = ?", analysisID).
		Group("severity").
		Find(&counts).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(counts))
	for _, c := range counts {
		result[c.Severity] = c.Count
	}
	return result, nil
}

// DeleteByAnalysis removes all issues belonging to an analysis
func (f *IssueFacade) DeleteByAnalysis(ctx context.Context, analysisID string) error {
	return f.getDB().WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Delete(&model.Issue{}).Error
}
