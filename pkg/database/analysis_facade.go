// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"gorm.io/gorm"
)

// AnalysisFacade provides database operations for analysis rows
type AnalysisFacade struct {
	BaseFacade
}

// NewAnalysisFacade creates a new analysis facade
func NewAnalysisFacade() *AnalysisFacade {
	return &AnalysisFacade{}
}

// NewAnalysisFacadeWithDB creates a facade bound to a specific connection
func NewAnalysisFacadeWithDB(db *gorm.DB) *AnalysisFacade {
	return &AnalysisFacade{BaseFacade: BaseFacade{db: db}}
}

// TrackColumns maps a track to its five column names.
type TrackColumns struct {
	Status      string
	Progress    string
	StartedAt   string
	CompletedAt string
	Error       string
}

// ColumnsForTrack returns the column names backing the given track.
func ColumnsForTrack(track constant.Track) TrackColumns {
	switch track {
	case constant.TrackEmbeddings:
		return TrackColumns{
			Status:      "embeddings_status",
			Progress:    "embeddings_progress",
			StartedAt:   "embeddings_started_at",
			CompletedAt: "embeddings_completed_at",
			Error:       "embeddings_error",
		}
	case constant.TrackSemanticCache:
		return TrackColumns{
			Status:      "semantic_cache_status",
			Progress:    "semantic_cache_progress",
			StartedAt:   "semantic_cache_started_at",
			CompletedAt: "semantic_cache_completed_at",
			Error:       "semantic_cache_error",
		}
	case constant.TrackAIScan:
		return TrackColumns{
			Status:      "ai_scan_status",
			Progress:    "ai_scan_progress",
			StartedAt:   "ai_scan_started_at",
			CompletedAt: "ai_scan_completed_at",
			Error:       "ai_scan_error",
		}
	default:
		return TrackColumns{
			Status:      "status",
			Progress:    "progress",
			StartedAt:   "started_at",
			CompletedAt: "completed_at",
			Error:       "error",
		}
	}
}

// activeTrackCondition matches rows where at least one track can still
// make progress.
const activeTrackCondition = "status IN ('pending','running') OR " +
	"embeddings_status IN ('pending','running') OR " +
	"semantic_cache_status IN ('pending','computing','generating_insights') OR " +
	"ai_scan_status IN ('pending','running')"

// Create inserts a new analysis row
func (f *AnalysisFacade) Create(ctx context.Context, analysis *model.Analysis) error {
	return f.getDB().WithContext(ctx).Create(analysis).Error
}

// Transaction runs fn with a facade bound to a single transaction
func (f *AnalysisFacade) Transaction(ctx context.Context, fn func(tx *AnalysisFacade) error) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewAnalysisFacadeWithDB(tx))
	})
}

// AcquireDispatchLock takes a transaction-scoped advisory lock keyed on
// (repository, commit), serializing concurrent dispatch for the same
// pair. The lock is released at commit or rollback.
func (f *AnalysisFacade) AcquireDispatchLock(ctx context.Context, repositoryID, commitSHA string) error {
	return f.getDB().WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(? || '@' || ?))", repositoryID, commitSHA).Error
}

// GetByID retrieves an analysis by ID, returning nil when absent
func (f *AnalysisFacade) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := f.getDB().WithContext(ctx).
		Where("id = ?", id).
		First(&analysis).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetLatestByRepo returns the most recent analysis for a repository,
// optionally restricted to a commit
func (f *AnalysisFacade) GetLatestByRepo(ctx context.Context, repositoryID, commitSHA string) (*model.Analysis, error) {
	var analysis model.Analysis
	query := f.getDB().WithContext(ctx).
		Where("repository_id = ?", repositoryID)
	if commitSHA != "" {
		query = query.Where("commit_sha = ?", commitSHA)
	}
	err := query.Order("created_at DESC").First(&analysis).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// FindInFlight returns the newest analysis for (repository, commit) that
// still has a non-terminal track, or nil
func (f *AnalysisFacade) FindInFlight(ctx context.Context, repositoryID, commitSHA string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := f.getDB().WithContext(ctx).
		Where("repository_id = ? AND commit_sha = ?", repositoryID, commitSHA).
		Where(activeTrackCondition).
		Order("created_at DESC").
		First(&analysis).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// UpdateColumns applies a column update map to a single analysis row.
// Returns gorm.ErrRecordNotFound when the row does not exist.
func (f *AnalysisFacade) UpdateColumns(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := f.getDB().WithContext(ctx).
		Model(&model.Analysis{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateColumnsIf applies updates only when the guard column still holds
// the expected value. Reports whether the row was changed. Used for
// optimistic status transitions and work claiming.
func (f *AnalysisFacade) UpdateColumnsIf(ctx context.Context, id, guardColumn, expected string, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()
	result := f.getDB().WithContext(ctx).
		Model(&model.Analysis{}).
		Where("id = ?", id).
		Where(guardColumn+" = ?", expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateHeartbeat advances heartbeat_at when the previous beat is at
// least minInterval old. Reports whether the write happened.
func (f *AnalysisFacade) UpdateHeartbeat(ctx context.Context, id string, now time.Time, minInterval time.Duration) (bool, error) {
	cutoff := now.Add(-minInterval)
	result := f.getDB().WithContext(ctx).
		Model(&model.Analysis{}).
		Where("id = ?", id).
		Where("heartbeat_at IS NULL OR heartbeat_at <= ?", cutoff).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStuck returns analyses with an active track whose last heartbeat
// (or last update, if no beat was ever recorded) predates cutoff
func (f *AnalysisFacade) ListStuck(ctx context.Context, cutoff time.Time) ([]*model.Analysis, error) {
	var analyses []*model.Analysis
	err := f.getDB().WithContext(ctx).
		Where(activeTrackCondition).
		Where("(heartbeat_at IS NOT NULL AND heartbeat_at < ?) OR (heartbeat_at IS NULL AND updated_at < ?)", cutoff, cutoff).
		Order("created_at ASC").
		Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// ListClaimable returns up to limit analyses whose given track sits in
// the claimable status, oldest first
func (f *AnalysisFacade) ListClaimable(ctx context.Context, track constant.Track, status string, limit int) ([]*model.Analysis, error) {
	var analyses []*model.Analysis
	cols := ColumnsForTrack(track)
	err := f.getDB().WithContext(ctx).
		Where(cols.Status+" = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// ListByRepo lists analyses for a repository, newest first
func (f *AnalysisFacade) ListByRepo(ctx context.Context, repositoryID string, limit, offset int) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	query := f.getDB().WithContext(ctx).
		Model(&model.Analysis{}).
		Where("repository_id = ?", repositoryID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Order("created_at DESC").Find(&analyses).Error; err != nil {
		return nil, 0, err
	}
	return analyses, total, nil
}
