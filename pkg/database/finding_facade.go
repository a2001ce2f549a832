// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindingFacade provides database operations for dead-code findings,
// file churn records, and semantic insights
type FindingFacade struct {
	BaseFacade
}

// NewFindingFacade creates a new finding facade
func NewFindingFacade() *FindingFacade {
	return &FindingFacade{}
}

// NewFindingFacadeWithDB creates a facade bound to a specific connection
func NewFindingFacadeWithDB(db *gorm.DB) *FindingFacade {
	return &FindingFacade{BaseFacade: BaseFacade{db: db}}
}

// ReplaceDeadCodeFindings swaps the dead-code findings of an analysis
// for a fresh set
func (f *FindingFacade) ReplaceDeadCodeFindings(ctx context.Context, analysisID string, findings []*model.DeadCodeFinding) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("analysis_id = ?", analysisID).
			Delete(&model.DeadCodeFinding{}).Error; err != nil {
			return err
		}
		if len(findings) == 0 {
			return nil
		}
		return tx.Create(findings).Error
	})
}

// ListDeadCodeFindings lists dead-code findings for an analysis,
// highest impact first
func (f *FindingFacade) ListDeadCodeFindings(ctx context.Context, analysisID string, includeDismissed bool) ([]*model.DeadCodeFinding, error) {
	var findings []*model.DeadCodeFinding
	query := f.getDB().WithContext(ctx).
		Where("analysis_id = ?", analysisID)
	if !includeDismissed {
		query = query.Where("is_dismissed = ?", false)
	}
	err := query.Order("impact_score DESC, file_path ASC").Find(&findings).Error
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// UpsertFileChurns writes churn records, replacing on conflict with the
// (analysis_id, file_path) unique key
func (f *FindingFacade) UpsertFileChurns(ctx context.Context, churns []*model.FileChurn) error {
	if len(churns) == 0 {
		return nil
	}
	return f.getDB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "analysis_id"}, {Name: "file_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"changes_90d", "coverage_rate", "unique_authors",
				"risk_factors", "risk_score",
			}),
		}).
		Create(churns).Error
}

// ListHotSpots returns churn records above the change threshold for an
// analysis, most active first
func (f *FindingFacade) ListHotSpots(ctx context.Context, analysisID string, changeThreshold, limit int) ([]*model.FileChurn, error) {
	var churns []*model.FileChurn
	query := f.getDB().WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Where("changes_90d > ?", changeThreshold).
		Order("changes_90d DESC, risk_score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&churns).Error; err != nil {
		return nil, err
	}
	return churns, nil
}

// ReplaceInsights swaps the semantic insights of an analysis for a
// fresh set
func (f *FindingFacade) ReplaceInsights(ctx context.Context, analysisID string, insights []*model.SemanticAIInsight) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("analysis_id = ?", analysisID).
			Delete(&model.SemanticAIInsight{}).Error; err != nil {
			return err
		}
		if len(insights) == 0 {
			return nil
		}
		return tx.Create(insights).Error
	})
}

// ListInsights lists semantic insights for an analysis
func (f *FindingFacade) ListInsights(ctx context.Context, analysisID string, includeDismissed bool) ([]*model.SemanticAIInsight, error) {
	var insights []*model.SemanticAIInsight
	query := f.getDB().WithContext(ctx).
		Where("analysis_id = ?", analysisID)
	if !includeDismissed {
		query = query.Where("is_dismissed = ?", false)
	}
	err := query.Order("priority ASC, created_at ASC").Find(&insights).Error
	if err != nil {
		return nil, err
	}
	return insights, nil
}
