// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package stuckdetection fails tracks whose worker stopped
// heartbeating, releasing the per-commit in-flight lock they hold.
package stuckdetection

import (
	"context"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

const defaultSchedule = "@every 1m"

// DetectionJob sweeps for analyses with stale heartbeats
type DetectionJob struct {
	facade         *database.AnalysisFacade
	stateService   *state.Service
	jobsConf       config.JobsConfig
	stuckThreshold time.Duration
	now            func() time.Time
}

// NewDetectionJob creates the stuck detection job
func NewDetectionJob(facade *database.AnalysisFacade, stateService *state.Service,
	jobsConf config.JobsConfig, stuckThreshold time.Duration) *DetectionJob {
	return &DetectionJob{
		facade:         facade,
		stateService:   stateService,
		jobsConf:       jobsConf,
		stuckThreshold: stuckThreshold,
		now:            time.Now,
	}
}

func (j *DetectionJob) Name() string { return "stuck_detection" }

func (j *DetectionJob) Schedule() string {
	if j.jobsConf.StuckCron != "" {
		return j.jobsConf.StuckCron
	}
	return defaultSchedule
}

// Run fails every non-terminal track of every stuck analysis. The
// guarded transition makes concurrent sweeps and still-alive workers
// safe: whoever writes first wins, the loser's update matches no row.
func (j *DetectionJob) Run(ctx context.Context) error {
	stuck, err := j.facade.ListStuck(ctx, j.now().Add(-j.stuckThreshold))
	if err != nil {
		return err
	}
	for _, analysis := range stuck {
		if err := j.failAnalysis(ctx, analysis); err != nil {
			log.Warnf("stuckdetection: fail analysis %s: %v", analysis.ID, err)
		}
	}
	if len(stuck) > 0 {
		log.Infof("stuckdetection: swept %d stuck analyses", len(stuck))
	}
	return nil
}

func (j *DetectionJob) failAnalysis(ctx context.Context, analysis *model.Analysis) error {
	log.Warnf("stuckdetection: analysis %s heartbeat is stale, failing active tracks", analysis.ID)
	for _, track := range []constant.Track{
		constant.TrackStatic, constant.TrackEmbeddings,
		constant.TrackSemanticCache, constant.TrackAIScan,
	} {
		if err := dispatch.FailTrack(ctx, j.stateService, analysis, track, constant.ReasonHeartbeatStale); err != nil {
			return err
		}
	}
	return nil
}
