// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package handlers implements the /v1 analysis endpoints.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/model/rest"
)

// Handler serves the analysis API
type Handler struct {
	dispatcher      *dispatch.Dispatcher
	limiter         *dispatch.RateLimiter
	analysisFacade  *database.AnalysisFacade
	issueFacade     *database.IssueFacade
	findingFacade   *database.FindingFacade
	bus             *events.Bus
	ssePollInterval time.Duration
}

// NewHandler creates the API handler
func NewHandler(
	dispatcher *dispatch.Dispatcher,
	limiter *dispatch.RateLimiter,
	analysisFacade *database.AnalysisFacade,
	issueFacade *database.IssueFacade,
	findingFacade *database.FindingFacade,
	bus *events.Bus,
	ssePollInterval time.Duration,
) *Handler {
	if ssePollInterval <= 0 {
		ssePollInterval = 2 * time.Second
	}
	return &Handler{
		dispatcher:      dispatcher,
		limiter:         limiter,
		analysisFacade:  analysisFacade,
		issueFacade:     issueFacade,
		findingFacade:   findingFacade,
		bus:             bus,
		ssePollInterval: ssePollInterval,
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(rest.HTTPStatusForCode(rest.CodeSuccess), rest.SuccessResp(c.Request.Context(), data))
}

func respondError(c *gin.Context, err error) {
	code := errors.CodeOf(err)
	c.JSON(rest.HTTPStatusForCode(code), rest.ErrorResp(c.Request.Context(), code, err.Error(), nil))
}
