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

// ContentCacheFacade provides database operations for repository content
// caches and their file objects
type ContentCacheFacade struct {
	BaseFacade
}

// NewContentCacheFacade creates a new content cache facade
func NewContentCacheFacade() *ContentCacheFacade {
	return &ContentCacheFacade{}
}

// NewContentCacheFacadeWithDB creates a facade bound to a specific connection
func NewContentCacheFacadeWithDB(db *gorm.DB) *ContentCacheFacade {
	return &ContentCacheFacade{BaseFacade: BaseFacade{db: db}}
}

// CreateCache inserts a new cache row
func (f *ContentCacheFacade) CreateCache(ctx context.Context, cache *model.RepoContentCache) error {
	return f.getDB().WithContext(ctx).Create(cache).Error
}

// GetCache retrieves the cache for (repository, commit), or nil
func (f *ContentCacheFacade) GetCache(ctx context.Context, repositoryID, commitSHA string) (*model.RepoContentCache, error) {
	var cache model.RepoContentCache
	err := f.getDB().WithContext(ctx).
		Where("repository_id = ? AND commit_sha = ?", repositoryID, commitSHA).
		First(&cache).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

// GetCacheByID retrieves a cache row by primary key, or nil
func (f *ContentCacheFacade) GetCacheByID(ctx context.Context, id string) (*model.RepoContentCache, error) {
	var cache model.RepoContentCache
	err := f.getDB().WithContext(ctx).
		Where("id = ?", id).
		First(&cache).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

// UpdateCache applies a column update map to a cache row
func (f *ContentCacheFacade) UpdateCache(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := f.getDB().WithContext(ctx).
		Model(&model.RepoContentCache{}).
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

// DeleteCache removes a cache row and its object records
func (f *ContentCacheFacade) DeleteCache(ctx context.Context, id string) error {
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_id = ?", id).
			Delete(&model.RepoContentObject{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).
			Delete(&model.RepoContentCache{}).Error
	})
}

// CreateObjects inserts object records in a single statement
func (f *ContentCacheFacade) CreateObjects(ctx context.Context, objects []*model.RepoContentObject) error {
	if len(objects) == 0 {
		return nil
	}
	return f.getDB().WithContext(ctx).Create(objects).Error
}

// UpdateObject applies a column update map to an object record
func (f *ContentCacheFacade) UpdateObject(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := f.getDB().WithContext(ctx).
		Model(&model.RepoContentObject{}).
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

// GetObjectByPath retrieves one object record of a cache, or nil
func (f *ContentCacheFacade) GetObjectByPath(ctx context.Context, cacheID, path string) (*model.RepoContentObject, error) {
	var object model.RepoContentObject
	err := f.getDB().WithContext(ctx).
		Where("cache_id = ? AND path = ?", cacheID, path).
		First(&object).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &object, nil
}

// ListObjects lists all object records of a cache, optionally filtered
// by status
func (f *ContentCacheFacade) ListObjects(ctx context.Context, cacheID, status string) ([]*model.RepoContentObject, error) {
	var objects []*model.RepoContentObject
	query := f.getDB().WithContext(ctx).
		Where("cache_id = ?", cacheID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("path ASC").Find(&objects).Error
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// CountObjects returns total and failed object counts for a cache
func (f *ContentCacheFacade) CountObjects(ctx context.Context, cacheID string) (total, failed int64, err error) {
	db := f.getDB().WithContext(ctx).Model(&model.RepoContentObject{})
	if err = db.Where("cache_id = ?", cacheID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = f.getDB().WithContext(ctx).Model(&model.RepoContentObject{}).
		Where("cache_id = ? AND status = ?", cacheID, constant.ObjectStatusFailed).
		Count(&failed).Error
	if err != nil {
		return 0, 0, err
	}
	return total, failed, nil
}

// ListFailedCaches returns failed caches last touched before cutoff
func (f *ContentCacheFacade) ListFailedCaches(ctx context.Context, cutoff time.Time) ([]*model.RepoContentCache, error) {
	var caches []*model.RepoContentCache
	err := f.getDB().WithContext(ctx).
		Where("status = ?", constant.CacheStatusFailed).
		Where("updated_at < ?", cutoff).
		Find(&caches).Error
	if err != nil {
		return nil, err
	}
	return caches, nil
}

// ListOrphanedUploading returns caches stuck in uploading since before
// cutoff, meaning the populating worker died mid-write
func (f *ContentCacheFacade) ListOrphanedUploading(ctx context.Context, cutoff time.Time) ([]*model.RepoContentCache, error) {
	var caches []*model.RepoContentCache
	err := f.getDB().WithContext(ctx).
		Where("status = ?", constant.CacheStatusUploading).
		Where("updated_at < ?", cutoff).
		Find(&caches).Error
	if err != nil {
		return nil, err
	}
	return caches, nil
}

// ListAgedOut returns ready caches older than cutoff whose commit is not
// pinned by any analysis, oldest access first
func (f *ContentCacheFacade) ListAgedOut(ctx context.Context, cutoff time.Time, limit int) ([]*model.RepoContentCache, error) {
	var caches []*model.RepoContentCache
	query := f.getDB().WithContext(ctx).
		Where("status = ?", constant.CacheStatusReady).
		Where("updated_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM analyses a WHERE a.repository_id = repo_content_caches.repository_id AND a.commit_sha = repo_content_caches.commit_sha AND a.pinned)").
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&caches).Error; err != nil {
		return nil, err
	}
	return caches, nil
}

// TouchCache bumps updated_at so LRU aging sees recent reads
func (f *ContentCacheFacade) TouchCache(ctx context.Context, id string) error {
	return f.getDB().WithContext(ctx).
		Model(&model.RepoContentCache{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}
