// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package state

import (
	"math"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
)

// FullStatus is the authoritative per-track view of one analysis plus
// the derived aggregate fields.
type FullStatus struct {
	AnalysisID string `json:"analysis_id"`

	Status                string `json:"status"`
	Progress              int    `json:"progress"`
	EmbeddingsStatus      string `json:"embeddings_status"`
	EmbeddingsProgress    int    `json:"embeddings_progress"`
	SemanticCacheStatus   string `json:"semantic_cache_status"`
	SemanticCacheProgress int    `json:"semantic_cache_progress"`
	AIScanStatus          string `json:"ai_scan_status"`
	AIScanProgress        int    `json:"ai_scan_progress"`

	HeartbeatAt     *time.Time        `json:"heartbeat_at,omitempty"`
	OverallStage    string            `json:"overall_stage"`
	OverallProgress int               `json:"overall_progress"`
	IsComplete      bool              `json:"is_complete"`
	Errors          map[string]string `json:"errors,omitempty"`
}

// Derive computes the aggregate view of an analysis. The overall stage
// prefers an active status, then completed, then failed, then pending.
// Overall progress averages the static, embeddings, and AI-scan tracks;
// the semantic-cache track is chained work and not counted.
func Derive(a *model.Analysis) FullStatus {
	fs := FullStatus{
		AnalysisID:            a.ID,
		Status:                a.Status,
		Progress:              a.Progress,
		EmbeddingsStatus:      a.EmbeddingsStatus,
		EmbeddingsProgress:    a.EmbeddingsProgress,
		SemanticCacheStatus:   a.SemanticCacheStatus,
		SemanticCacheProgress: a.SemanticCacheProgress,
		AIScanStatus:          a.AIScanStatus,
		AIScanProgress:        a.AIScanProgress,
		HeartbeatAt:           a.HeartbeatAt,
		IsComplete:            a.IsComplete(),
	}

	fs.OverallStage = overallStage(a)
	mean := float64(a.Progress+a.EmbeddingsProgress+a.AIScanProgress) / 3.0
	fs.OverallProgress = int(math.Round(mean))

	errs := make(map[string]string)
	for _, track := range []constant.Track{
		constant.TrackStatic, constant.TrackEmbeddings,
		constant.TrackSemanticCache, constant.TrackAIScan,
	} {
		if msg := a.TrackError(track); msg != "" {
			errs[string(track)] = msg
		}
	}
	if len(errs) > 0 {
		fs.Errors = errs
	}
	return fs
}

func overallStage(a *model.Analysis) string {
	for _, status := range []string{
		a.Status, a.EmbeddingsStatus, a.SemanticCacheStatus, a.AIScanStatus,
	} {
		if isActiveStatus(status) {
			return status
		}
	}

	allCompleted := a.Status == constant.StatusCompleted &&
		a.EmbeddingsStatus == constant.StatusCompleted &&
		a.AIScanStatus == constant.StatusCompleted &&
		(a.SemanticCacheStatus == constant.StatusCompleted || a.SemanticCacheStatus == constant.StatusNone)
	if allCompleted {
		return constant.StatusCompleted
	}

	for _, status := range []string{
		a.Status, a.EmbeddingsStatus, a.SemanticCacheStatus, a.AIScanStatus,
	} {
		if status == constant.StatusFailed {
			return constant.StatusFailed
		}
	}
	return constant.StatusPending
}
