// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import (
	"encoding/json"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

const TableNameAnalysis = "analyses"

// Analysis mapped from table <analyses>. One row per pipeline execution
// on a single commit; the three worker tracks advance their own status
// columns independently.
type Analysis struct {
	ID           string `gorm:"column:id;primaryKey;size:64" json:"id"`
	RepositoryID string `gorm:"column:repository_id;not null;size:128;index:idx_analyses_repo_commit" json:"repository_id"`
	CommitSHA    string `gorm:"column:commit_sha;not null;size:40;index:idx_analyses_repo_commit" json:"commit_sha"`
	Branch       string `gorm:"column:branch;size:256" json:"branch,omitempty"`
	TriggerType  string `gorm:"column:trigger_type;not null;size:32" json:"trigger_type"`

	// Static analysis (legacy aggregate) track.
	Status      string     `gorm:"column:status;not null;size:32;default:'pending'" json:"status"`
	Progress    int        `gorm:"column:progress;not null;default:0" json:"progress"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Error       string     `gorm:"column:error;size:2048" json:"error,omitempty"`

	// Embeddings track.
	EmbeddingsStatus      string     `gorm:"column:embeddings_status;not null;size:32;default:'none'" json:"embeddings_status"`
	EmbeddingsProgress    int        `gorm:"column:embeddings_progress;not null;default:0" json:"embeddings_progress"`
	EmbeddingsStartedAt   *time.Time `gorm:"column:embeddings_started_at" json:"embeddings_started_at,omitempty"`
	EmbeddingsCompletedAt *time.Time `gorm:"column:embeddings_completed_at" json:"embeddings_completed_at,omitempty"`
	EmbeddingsError       string     `gorm:"column:embeddings_error;size:2048" json:"embeddings_error,omitempty"`

	// Semantic-cache track, chained after embeddings completion.
	SemanticCacheStatus      string     `gorm:"column:semantic_cache_status;not null;size:32;default:'none'" json:"semantic_cache_status"`
	SemanticCacheProgress    int        `gorm:"column:semantic_cache_progress;not null;default:0" json:"semantic_cache_progress"`
	SemanticCacheStartedAt   *time.Time `gorm:"column:semantic_cache_started_at" json:"semantic_cache_started_at,omitempty"`
	SemanticCacheCompletedAt *time.Time `gorm:"column:semantic_cache_completed_at" json:"semantic_cache_completed_at,omitempty"`
	SemanticCacheError       string     `gorm:"column:semantic_cache_error;size:2048" json:"semantic_cache_error,omitempty"`

	// AI scan track.
	AIScanStatus      string     `gorm:"column:ai_scan_status;not null;size:32;default:'none'" json:"ai_scan_status"`
	AIScanProgress    int        `gorm:"column:ai_scan_progress;not null;default:0" json:"ai_scan_progress"`
	AIScanStartedAt   *time.Time `gorm:"column:ai_scan_started_at" json:"ai_scan_started_at,omitempty"`
	AIScanCompletedAt *time.Time `gorm:"column:ai_scan_completed_at" json:"ai_scan_completed_at,omitempty"`
	AIScanError       string     `gorm:"column:ai_scan_error;size:2048" json:"ai_scan_error,omitempty"`

	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`

	VCIScore      *float64 `gorm:"column:vci_score;type:numeric(5,2)" json:"vci_score,omitempty"`
	TechDebtLevel string   `gorm:"column:tech_debt_level;size:32" json:"tech_debt_level,omitempty"`
	Metrics       ExtType  `gorm:"column:metrics;type:jsonb" json:"metrics,omitempty"`

	SemanticCache json.RawMessage `gorm:"column:semantic_cache;type:jsonb" json:"semantic_cache,omitempty"`
	AIScanCache   json.RawMessage `gorm:"column:ai_scan_cache;type:jsonb" json:"ai_scan_cache,omitempty"`

	Pinned    bool      `gorm:"column:pinned;not null;default:false" json:"pinned"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName Analysis's table name
func (*Analysis) TableName() string {
	return TableNameAnalysis
}

// TrackStatus returns the status of the given track.
func (a *Analysis) TrackStatus(track constant.Track) string {
	switch track {
	case constant.TrackStatic:
		return a.Status
	case constant.TrackEmbeddings:
		return a.EmbeddingsStatus
	case constant.TrackSemanticCache:
		return a.SemanticCacheStatus
	case constant.TrackAIScan:
		return a.AIScanStatus
	}
	return ""
}

// TrackProgress returns the progress of the given track.
func (a *Analysis) TrackProgress(track constant.Track) int {
	switch track {
	case constant.TrackStatic:
		return a.Progress
	case constant.TrackEmbeddings:
		return a.EmbeddingsProgress
	case constant.TrackSemanticCache:
		return a.SemanticCacheProgress
	case constant.TrackAIScan:
		return a.AIScanProgress
	}
	return 0
}

// TrackStartedAt returns the start timestamp of the given track.
func (a *Analysis) TrackStartedAt(track constant.Track) *time.Time {
	switch track {
	case constant.TrackStatic:
		return a.StartedAt
	case constant.TrackEmbeddings:
		return a.EmbeddingsStartedAt
	case constant.TrackSemanticCache:
		return a.SemanticCacheStartedAt
	case constant.TrackAIScan:
		return a.AIScanStartedAt
	}
	return nil
}

// TrackError returns the recorded error of the given track.
func (a *Analysis) TrackError(track constant.Track) string {
	switch track {
	case constant.TrackStatic:
		return a.Error
	case constant.TrackEmbeddings:
		return a.EmbeddingsError
	case constant.TrackSemanticCache:
		return a.SemanticCacheError
	case constant.TrackAIScan:
		return a.AIScanError
	}
	return ""
}

// IsTerminalStatus reports whether a track status has no out-edges.
func IsTerminalStatus(status string) bool {
	return status == constant.StatusCompleted || status == constant.StatusFailed
}

// IsComplete reports whether the static, embeddings, and AI-scan tracks
// are all terminal.
func (a *Analysis) IsComplete() bool {
	return IsTerminalStatus(a.Status) &&
		IsTerminalStatus(a.EmbeddingsStatus) &&
		IsTerminalStatus(a.AIScanStatus)
}
