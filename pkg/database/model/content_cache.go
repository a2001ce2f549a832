// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"encoding/json"
	"time"
)

const (
	TableNameRepoContentCache  = "repo_content_caches"
	TableNameRepoContentObject = "repo_content_objects"
)

// RepoContentCache mapped from table <repo_content_caches>. One
// commit-scoped snapshot of a repository's files; bytes live in object
// storage, metadata here.
type RepoContentCache struct {
	ID           string          `gorm:"column:id;primaryKey;size:64" json:"id"`
	RepositoryID string          `gorm:"column:repository_id;not null;size:128;uniqueIndex:uniq_content_cache_repo_commit" json:"repository_id"`
	CommitSHA    string          `gorm:"column:commit_sha;not null;size:40;uniqueIndex:uniq_content_cache_repo_commit" json:"commit_sha"`
	Status       string          `gorm:"column:status;not null;size:16;default:'pending'" json:"status"`
	TreeSummary  json.RawMessage `gorm:"column:tree_summary;type:jsonb" json:"tree_summary,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName RepoContentCache's table name
func (*RepoContentCache) TableName() string {
	return TableNameRepoContentCache
}

// RepoContentObject mapped from table <repo_content_objects>. Unique per
// (cache_id, path).
type RepoContentObject struct {
	ID          string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	CacheID     string    `gorm:"column:cache_id;not null;size:64;uniqueIndex:uniq_content_object_cache_path" json:"cache_id"`
	Path        string    `gorm:"column:path;not null;size:1024;uniqueIndex:uniq_content_object_cache_path" json:"path"`
	ObjectKey   string    `gorm:"column:object_key;not null;size:1024" json:"object_key"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	ContentHash string    `gorm:"column:content_hash;size:64" json:"content_hash"`
	Status      string    `gorm:"column:status;not null;size:16;default:'uploading'" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName RepoContentObject's table name
func (*RepoContentObject) TableName() string {
	return TableNameRepoContentObject
}
