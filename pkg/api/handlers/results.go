// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/model/rest"
)

const hotSpotListLimit = 20

// ListIssues returns the issues of an analysis with optional filters.
// GET /v1/analyses/:id/issues
func (h *Handler) ListIssues(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}

	opts := database.ListIssuesOptions{
		Severity: c.Query("severity"),
		Type:     c.Query("type"),
		Status:   c.Query("status"),
	}
	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	opts.Offset, _ = strconv.Atoi(c.Query("offset"))

	issues, total, err := h.issueFacade.ListByAnalysis(c.Request.Context(), analysis.ID, opts)
	if err != nil {
		respondError(c, errors.WrapError(err, "list issues", errors.InternalError))
		return
	}
	counts, err := h.issueFacade.CountBySeverity(c.Request.Context(), analysis.ID)
	if err != nil {
		respondError(c, errors.WrapError(err, "count issues", errors.InternalError))
		return
	}

	respondOK(c, gin.H{
		"issues":          rest.NewListData(issues, int(total)),
		"severity_counts": counts,
	})
}

// ArchitectureReport is the /architecture response body.
type ArchitectureReport struct {
	Status   string                     `json:"status"`
	Summary  json.RawMessage            `json:"summary,omitempty"`
	DeadCode []*model.DeadCodeFinding   `json:"dead_code"`
	HotSpots []*model.FileChurn         `json:"hot_spots"`
	Insights []*model.SemanticAIInsight `json:"insights"`
}

// GetArchitecture returns the cluster analyzer's output: the cached
// summary document plus the relational findings.
// GET /v1/analyses/:id/architecture
func (h *Handler) GetArchitecture(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if analysis.SemanticCacheStatus != constant.StatusCompleted {
		respondError(c, errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("architecture report not ready, semantic cache is %s", analysis.SemanticCacheStatus))
		return
	}

	ctx := c.Request.Context()
	deadCode, err := h.findingFacade.ListDeadCodeFindings(ctx, analysis.ID, false)
	if err != nil {
		respondError(c, errors.WrapError(err, "list dead code findings", errors.InternalError))
		return
	}
	hotSpots, err := h.findingFacade.ListHotSpots(ctx, analysis.ID, constant.HotSpotChangeThreshold, hotSpotListLimit)
	if err != nil {
		respondError(c, errors.WrapError(err, "list hot spots", errors.InternalError))
		return
	}
	insights, err := h.findingFacade.ListInsights(ctx, analysis.ID, false)
	if err != nil {
		respondError(c, errors.WrapError(err, "list insights", errors.InternalError))
		return
	}

	respondOK(c, ArchitectureReport{
		Status:   analysis.SemanticCacheStatus,
		Summary:  analysis.SemanticCache,
		DeadCode: deadCode,
		HotSpots: hotSpots,
		Insights: insights,
	})
}

// GetAIScan returns the cached AI scan document.
// GET /v1/analyses/:id/ai-scan
func (h *Handler) GetAIScan(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if analysis.AIScanStatus != constant.StatusCompleted || len(analysis.AIScanCache) == 0 {
		respondError(c, errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("AI scan not ready, track is %s", analysis.AIScanStatus))
		return
	}
	respondOK(c, json.RawMessage(analysis.AIScanCache))
}
