// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package dispatch turns an analysis trigger into a persisted Analysis
// row with all three tracks queued, enforcing the at-most-one-in-flight
// rule per (repository, commit).
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

// Dispatcher creates analyses
type Dispatcher struct {
	facade         *database.AnalysisFacade
	stateService   *state.Service
	vcs            gitrepo.VCS
	stuckThreshold time.Duration
	now            func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(facade *database.AnalysisFacade, stateService *state.Service, vcs gitrepo.VCS, stuckThreshold time.Duration) *Dispatcher {
	return &Dispatcher{
		facade:         facade,
		stateService:   stateService,
		vcs:            vcs,
		stuckThreshold: stuckThreshold,
		now:            time.Now,
	}
}

// TriggerRequest describes one analysis trigger. CommitSHA may be empty
// when Branch and RepoURL allow resolving the branch head. AccessToken
// is sealed before it touches the store.
type TriggerRequest struct {
	RepositoryID string `json:"repository_id" binding:"required"`
	RepoURL      string `json:"repo_url,omitempty"`
	CommitSHA    string `json:"commit_sha,omitempty"`
	Branch       string `json:"branch,omitempty"`
	TriggerType  string `json:"trigger_type" binding:"required"`
	AccessToken  string `json:"access_token,omitempty"`
}

var validTriggers = map[string]bool{
	constant.TriggerScheduled: true,
	constant.TriggerWebhook:   true,
	constant.TriggerManual:    true,
}

// Trigger runs the dispatch flow: resolve the commit, check the
// in-flight lock, insert the row, and queue the three tracks.
func (d *Dispatcher) Trigger(ctx context.Context, req TriggerRequest) (*model.Analysis, error) {
	if !validTriggers[req.TriggerType] {
		return nil, errors.NewError().WithCode(errors.RequestParameterInvalid).
			WithMessagef("unknown trigger_type %q", req.TriggerType)
	}

	sealedToken, err := sealToken(req.AccessToken)
	if err != nil {
		return nil, err
	}

	commitSHA := req.CommitSHA
	if commitSHA == "" {
		if req.Branch == "" || req.RepoURL == "" {
			return nil, errors.NewError().WithCode(errors.RequestParameterInvalid).
				WithMessage("commit_sha or (branch, repo_url) is required")
		}
		remoteURL, err := gitrepo.AuthenticatedURL(req.RepoURL, req.AccessToken)
		if err != nil {
			return nil, err
		}
		resolved, err := d.vcs.ResolveBranchHead(ctx, remoteURL, req.Branch)
		if err != nil {
			return nil, err
		}
		commitSHA = resolved
	}
	if !gitrepo.IsCommitSHA(commitSHA) {
		return nil, errors.NewError().WithCode(errors.RequestParameterInvalid).
			WithMessagef("commit_sha %q is not a full hex commit id", commitSHA)
	}

	analysis := &model.Analysis{
		ID:                  uuid.NewString(),
		RepositoryID:        req.RepositoryID,
		CommitSHA:           commitSHA,
		Branch:              req.Branch,
		TriggerType:         req.TriggerType,
		Status:              constant.StatusNone,
		EmbeddingsStatus:    constant.StatusNone,
		SemanticCacheStatus: constant.StatusNone,
		AIScanStatus:        constant.StatusNone,
	}
	if req.RepoURL != "" {
		analysis.Metrics = model.ExtType{"repo_url": req.RepoURL}
		if sealedToken != "" {
			analysis.Metrics["access_token"] = sealedToken
		}
	}

	// The advisory lock serializes concurrent triggers for one
	// (repository, commit): the in-flight check, the insert, and the
	// queueing transitions all commit while holding it.
	err = d.facade.Transaction(ctx, func(tx *database.AnalysisFacade) error {
		if err := tx.AcquireDispatchLock(ctx, req.RepositoryID, commitSHA); err != nil {
			return errors.WrapError(err, "acquire dispatch lock", errors.InternalError)
		}
		txState := d.stateService.WithFacade(tx)
		if err := d.checkInFlight(ctx, tx, txState, req.RepositoryID, commitSHA); err != nil {
			return err
		}
		if err := tx.Create(ctx, analysis); err != nil {
			return errors.WrapError(err, "insert analysis", errors.InternalError)
		}
		for _, track := range []constant.Track{
			constant.TrackStatic, constant.TrackEmbeddings, constant.TrackAIScan,
		} {
			if _, err := txState.Transition(ctx, state.TransitionRequest{
				AnalysisID: analysis.ID,
				Track:      track,
				NewStatus:  constant.StatusPending,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("dispatch: analysis %s queued for %s@%s (%s)",
		analysis.ID, req.RepositoryID, commitSHA, req.TriggerType)
	analysis.Status = constant.StatusPending
	analysis.EmbeddingsStatus = constant.StatusPending
	analysis.AIScanStatus = constant.StatusPending
	return analysis, nil
}

// checkInFlight enforces at-most-one in-flight analysis per
// (repository, commit). A fresh heartbeat wins the conflict; a stale
// one gets its non-terminal tracks failed and releases the lock. Runs
// inside the dispatch transaction.
func (d *Dispatcher) checkInFlight(ctx context.Context, tx *database.AnalysisFacade, txState *state.Service, repositoryID, commitSHA string) error {
	existing, err := tx.FindInFlight(ctx, repositoryID, commitSHA)
	if err != nil {
		return errors.WrapError(err, "check in-flight analysis", errors.InternalError)
	}
	if existing == nil {
		return nil
	}

	lastSeen := existing.UpdatedAt
	if existing.HeartbeatAt != nil {
		lastSeen = *existing.HeartbeatAt
	}
	if d.now().Sub(lastSeen) <= d.stuckThreshold {
		return errors.NewError().WithCode(errors.CodeAnalysisInFlight).
			WithMessagef("analysis %s already in flight for %s@%s", existing.ID, repositoryID, commitSHA)
	}

	log.Warnf("dispatch: analysis %s has a stale heartbeat, failing it to release the lock", existing.ID)
	return d.failStaleTracks(ctx, txState, existing)
}

// failStaleTracks moves every non-terminal track of a stale analysis to
// failed with reason heartbeat_stale. Tracks still in pending or none
// pass through their running status to honor the transition tables.
func (d *Dispatcher) failStaleTracks(ctx context.Context, txState *state.Service, analysis *model.Analysis) error {
	for _, track := range []constant.Track{
		constant.TrackStatic, constant.TrackEmbeddings,
		constant.TrackSemanticCache, constant.TrackAIScan,
	} {
		if err := FailTrack(ctx, txState, analysis, track, constant.ReasonHeartbeatStale); err != nil {
			return err
		}
	}
	return nil
}

// FailTrack moves a non-terminal track to failed with the given
// reason. Terminal and never-started (none) tracks are left alone.
func FailTrack(ctx context.Context, stateService *state.Service, analysis *model.Analysis, track constant.Track, reason string) error {
	status := analysis.TrackStatus(track)
	if status == constant.StatusNone || model.IsTerminalStatus(status) {
		return nil
	}
	_, err := stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      track,
		NewStatus:  constant.StatusFailed,
		Error:      reason,
	})
	return err
}
