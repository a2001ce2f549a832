// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package handlers

import (
	"io"
	"reflect"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/model/rest"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

// CreateAnalysis triggers a new analysis run.
// POST /v1/analyses
func (h *Handler) CreateAnalysis(c *gin.Context) {
	var req dispatch.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ObserveDispatch(req.TriggerType, "rejected")
		respondError(c, errors.WrapError(err, "decode trigger request", errors.RequestParameterInvalid))
		return
	}

	scope := req.RepositoryID
	if scope == "" {
		scope = c.ClientIP()
	}
	if allowed, retryAfter := h.limiter.Allow(scope); !allowed {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		metrics.ObserveDispatch(req.TriggerType, "rejected")
		respondError(c, errors.NewError().WithCode(errors.CodeRateLimited).
			WithMessagef("rate limit exceeded for %s", scope))
		return
	}

	analysis, err := h.dispatcher.Trigger(c.Request.Context(), req)
	if err != nil {
		outcome := "error"
		if errors.CodeOf(err) == errors.CodeAnalysisInFlight {
			outcome = "conflict"
		}
		metrics.ObserveDispatch(req.TriggerType, outcome)
		respondError(c, err)
		return
	}
	metrics.ObserveDispatch(req.TriggerType, "queued")
	respondOK(c, analysis)
}

// ListAnalyses returns a repository's analyses, newest first.
// GET /v1/repositories/:id/analyses
func (h *Handler) ListAnalyses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	analyses, total, err := h.analysisFacade.ListByRepo(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, errors.WrapError(err, "list analyses", errors.InternalError))
		return
	}
	respondOK(c, rest.NewListData(analyses, int(total)))
}

// GetAnalysis returns one analysis row.
// GET /v1/analyses/:id
func (h *Handler) GetAnalysis(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, analysis)
}

// GetFullStatus returns the per-track view with derived aggregates.
// GET /v1/analyses/:id/full-status
func (h *Handler) GetFullStatus(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, state.Derive(analysis))
}

// StreamEvents streams transition events for one analysis as SSE until
// the client disconnects. The bus only carries transitions made by this
// process; transitions written by the worker and jobs binaries land in
// the store, so the stream also re-reads the row on a fixed cadence and
// emits the delta.
// GET /v1/analyses/:id/events
func (h *Handler) StreamEvents(c *gin.Context) {
	analysis, err := h.loadAnalysis(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ch, cancel := h.bus.Subscribe(analysis.ID)
	defer cancel()
	ticker := time.NewTicker(h.ssePollInterval)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Initial snapshot so a late subscriber sees the current state.
	last := state.Derive(analysis)
	c.SSEvent("snapshot", last)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-ticker.C:
			current, err := h.analysisFacade.GetByID(c.Request.Context(), analysis.ID)
			if err != nil || current == nil {
				return false
			}
			full := state.Derive(current)
			if reflect.DeepEqual(full, last) {
				return true
			}
			last = full
			c.SSEvent("status", full)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) loadAnalysis(c *gin.Context) (*model.Analysis, error) {
	id := c.Param("id")
	analysis, err := h.analysisFacade.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, errors.WrapError(err, "load analysis", errors.InternalError)
	}
	if analysis == nil {
		return nil, errors.NewError().WithCode(errors.CodeAnalysisNotFound).
			WithMessagef("analysis %s not found", id)
	}
	return analysis, nil
}
