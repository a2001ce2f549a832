// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package state is the single writer of analysis status fields. Every
// worker reports through it so that transition legality, progress
// bounds, timestamps, and event emission stay in one place.
package state

import (
	"context"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
)

// DefaultHeartbeatThrottle bounds how often heartbeat writes hit the
// store.
const DefaultHeartbeatThrottle = 5 * time.Second

// Service mediates all analysis status mutations
type Service struct {
	facade            *database.AnalysisFacade
	bus               *events.Bus
	heartbeatThrottle time.Duration
	now               func() time.Time
}

// NewService creates a state service over the given facade and event bus
func NewService(facade *database.AnalysisFacade, bus *events.Bus, heartbeatThrottle time.Duration) *Service {
	if heartbeatThrottle <= 0 {
		heartbeatThrottle = DefaultHeartbeatThrottle
	}
	return &Service{
		facade:            facade,
		bus:               bus,
		heartbeatThrottle: heartbeatThrottle,
		now:               time.Now,
	}
}

// WithFacade returns a copy of the service writing through the given
// facade, so callers can run transitions inside their own transaction.
func (s *Service) WithFacade(facade *database.AnalysisFacade) *Service {
	clone := *s
	clone.facade = facade
	return &clone
}

// TransitionRequest describes one status mutation. An empty NewStatus
// keeps the current status and only reports progress.
type TransitionRequest struct {
	AnalysisID string
	Track      constant.Track
	NewStatus  string
	Progress   *int
	Error      string
}

// Transition validates and applies a status change. The chained edge
// from embeddings completion to semantic-cache pending is written in
// the same UPDATE so a worker crash cannot lose it.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*model.Analysis, error) {
	analysis, err := s.facade.GetByID(ctx, req.AnalysisID)
	if err != nil {
		return nil, errors.WrapError(err, "load analysis for transition", errors.InternalError)
	}
	if analysis == nil {
		return nil, errors.NewError().WithCode(errors.CodeAnalysisNotFound).
			WithMessagef("analysis %s not found", req.AnalysisID)
	}

	current := analysis.TrackStatus(req.Track)
	newStatus := req.NewStatus
	if newStatus == "" {
		newStatus = current
	}

	if !CanTransition(req.Track, current, newStatus) {
		return nil, errors.NewError().WithCode(errors.CodeInvalidStateTransition).
			WithMessagef("track %s cannot move %s -> %s", req.Track, current, newStatus)
	}

	progress, err := s.resolveProgress(analysis, req.Track, current, newStatus, req.Progress)
	if err != nil {
		return nil, err
	}

	// Pure no-op: same status, same progress. Nothing to write or emit.
	if newStatus == current && progress == analysis.TrackProgress(req.Track) {
		return analysis, nil
	}

	now := s.now()
	cols := database.ColumnsForTrack(req.Track)
	updates := map[string]interface{}{
		cols.Status:   newStatus,
		cols.Progress: progress,
	}
	if newStatus != current {
		if current == constant.StatusPending || current == constant.StatusNone {
			if analysis.TrackStartedAt(req.Track) == nil && !model.IsTerminalStatus(newStatus) {
				updates[cols.StartedAt] = now
			}
		}
		if model.IsTerminalStatus(newStatus) {
			updates[cols.CompletedAt] = now
		}
		switch newStatus {
		case constant.StatusFailed:
			updates[cols.Error] = req.Error
		case constant.StatusPending:
			// Retry clears the previous failure.
			updates[cols.Error] = ""
			updates[cols.CompletedAt] = nil
		}
	}

	chainSemanticCache := req.Track == constant.TrackEmbeddings &&
		newStatus == constant.StatusCompleted &&
		analysis.SemanticCacheStatus == constant.StatusNone
	if chainSemanticCache {
		updates["semantic_cache_status"] = constant.StatusPending
	}

	changed, err := s.facade.UpdateColumnsIf(ctx, req.AnalysisID, cols.Status, current, updates)
	if err != nil {
		return nil, errors.WrapError(err, "apply transition", errors.InternalError)
	}
	if !changed {
		return nil, errors.NewError().WithCode(errors.CodeInvalidStateTransition).
			WithMessagef("track %s moved concurrently away from %s", req.Track, current)
	}

	s.applyLocal(analysis, req.Track, newStatus, progress, req.Error, now, updates)
	if chainSemanticCache {
		analysis.SemanticCacheStatus = constant.StatusPending
	}

	eventType := events.TypeProgress
	if newStatus != current {
		eventType = events.TypeStatus
	}
	s.bus.Publish(events.Event{
		Type:       eventType,
		AnalysisID: analysis.ID,
		Track:      string(req.Track),
		Status:     newStatus,
		Progress:   progress,
		At:         now,
	})
	if chainSemanticCache {
		s.bus.Publish(events.Event{
			Type:       events.TypeStatus,
			AnalysisID: analysis.ID,
			Track:      string(constant.TrackSemanticCache),
			Status:     constant.StatusPending,
			At:         now,
		})
	}

	if newStatus != current {
		metrics.ObserveTransition(string(req.Track), newStatus)
		log.Infof("analysis %s: track %s %s -> %s (progress %d)",
			analysis.ID, req.Track, current, newStatus, progress)
	}
	return analysis, nil
}

// resolveProgress computes the stored progress for a transition and
// enforces the [0,100] range, the pending/terminal anchors, and
// monotonicity once a track has left pending.
func (s *Service) resolveProgress(analysis *model.Analysis, track constant.Track, current, newStatus string, requested *int) (int, error) {
	if model.IsTerminalStatus(newStatus) {
		return 100, nil
	}
	if newStatus == constant.StatusNone || newStatus == constant.StatusPending {
		return 0, nil
	}

	progress := analysis.TrackProgress(track)
	if requested == nil {
		return progress, nil
	}

	p := *requested
	if p < 0 || p > 100 {
		return 0, errors.NewError().WithCode(errors.CodeInvalidProgressValue).
			WithMessagef("progress %d out of range", p)
	}
	if newStatus == current && p < progress {
		return 0, errors.NewError().WithCode(errors.CodeInvalidProgressValue).
			WithMessagef("progress may not move backwards (%d -> %d)", progress, p)
	}
	return p, nil
}

// applyLocal mirrors the persisted update onto the in-memory row so
// callers see the post-transition state without a reload
func (s *Service) applyLocal(analysis *model.Analysis, track constant.Track, newStatus string, progress int, errText string, now time.Time, updates map[string]interface{}) {
	cols := database.ColumnsForTrack(track)
	set := func(statusPtr *string, progressPtr *int, startedPtr, completedPtr **time.Time, errPtr *string) {
		*statusPtr = newStatus
		*progressPtr = progress
		if _, ok := updates[cols.StartedAt]; ok {
			t := now
			*startedPtr = &t
		}
		if v, ok := updates[cols.CompletedAt]; ok {
			if v == nil {
				*completedPtr = nil
			} else {
				t := now
				*completedPtr = &t
			}
		}
		if v, ok := updates[cols.Error]; ok {
			*errPtr, _ = v.(string)
			if newStatus == constant.StatusFailed {
				*errPtr = errText
			}
		}
	}
	switch track {
	case constant.TrackStatic:
		set(&analysis.Status, &analysis.Progress, &analysis.StartedAt, &analysis.CompletedAt, &analysis.Error)
	case constant.TrackEmbeddings:
		set(&analysis.EmbeddingsStatus, &analysis.EmbeddingsProgress, &analysis.EmbeddingsStartedAt, &analysis.EmbeddingsCompletedAt, &analysis.EmbeddingsError)
	case constant.TrackSemanticCache:
		set(&analysis.SemanticCacheStatus, &analysis.SemanticCacheProgress, &analysis.SemanticCacheStartedAt, &analysis.SemanticCacheCompletedAt, &analysis.SemanticCacheError)
	case constant.TrackAIScan:
		set(&analysis.AIScanStatus, &analysis.AIScanProgress, &analysis.AIScanStartedAt, &analysis.AIScanCompletedAt, &analysis.AIScanError)
	}
	analysis.UpdatedAt = now
}

// ReportProgress records forward progress on a track without changing
// its status
func (s *Service) ReportProgress(ctx context.Context, analysisID string, track constant.Track, progress int) error {
	_, err := s.Transition(ctx, TransitionRequest{
		AnalysisID: analysisID,
		Track:      track,
		Progress:   &progress,
	})
	return err
}

// Heartbeat writes heartbeat_at when the previous beat is older than the
// throttle interval. Reports whether a write happened.
func (s *Service) Heartbeat(ctx context.Context, analysisID string) (bool, error) {
	now := s.now()
	written, err := s.facade.UpdateHeartbeat(ctx, analysisID, now, s.heartbeatThrottle)
	if err != nil {
		return false, errors.WrapError(err, "write heartbeat", errors.InternalError)
	}
	if written {
		s.bus.Publish(events.Event{
			Type:       events.TypeHeartbeat,
			AnalysisID: analysisID,
			At:         now,
		})
	}
	return written, nil
}
