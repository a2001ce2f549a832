// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package worker polls the store for queued analysis tracks and runs
// the registered executors. The pending status columns are the queue;
// claiming is an optimistic conditional update, so multiple worker
// instances can share one database.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

// Executor runs one track of one analysis to a terminal status.
// Implementations report progress through the state service and must
// honor ctx cancellation between suspend points.
type Executor interface {
	Track() constant.Track
	// ClaimStatus is the queue status this executor picks up.
	ClaimStatus() string
	// RunningStatus is the status the scheduler claims into.
	RunningStatus() string
	Execute(ctx context.Context, analysis *model.Analysis) error
}

// SchedulerConfig tunes the scan loop.
type SchedulerConfig struct {
	InstanceID         string
	ScanInterval       time.Duration
	MaxConcurrentTasks int
	HeartbeatInterval  time.Duration
}

// DefaultSchedulerConfig returns the default tuning
func DefaultSchedulerConfig(instanceID string) *SchedulerConfig {
	return &SchedulerConfig{
		InstanceID:         instanceID,
		ScanInterval:       10 * time.Second,
		MaxConcurrentTasks: 4,
		HeartbeatInterval:  state.DefaultHeartbeatThrottle,
	}
}

// Scheduler owns the scan loop and the running executions
type Scheduler struct {
	config       *SchedulerConfig
	facade       *database.AnalysisFacade
	stateService *state.Service

	executors []Executor

	mu      sync.Mutex
	running map[string]context.CancelFunc // analysisID|track -> cancel
	wg      sync.WaitGroup
	stop    context.CancelFunc
}

// NewScheduler creates a scheduler
func NewScheduler(config *SchedulerConfig, facade *database.AnalysisFacade, stateService *state.Service) *Scheduler {
	return &Scheduler{
		config:       config,
		facade:       facade,
		stateService: stateService,
		running:      make(map[string]context.CancelFunc),
	}
}

// RegisterExecutor adds an executor for one track
func (s *Scheduler) RegisterExecutor(executor Executor) {
	s.executors = append(s.executors, executor)
}

// Start launches the scan loop
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.wg.Add(1)
	go s.scanLoop(ctx)
	log.Infof("worker: scheduler %s started (%d executors, scan every %v)",
		s.config.InstanceID, len(s.executors), s.config.ScanInterval)
}

// Stop cancels running executions and waits for them to settle
func (s *Scheduler) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	log.Infof("worker: scheduler %s stopped", s.config.InstanceID)
}

// Cancel sets the cancel flag of one running execution
func (s *Scheduler) Cancel(analysisID string, track constant.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[runKey(analysisID, track)]; ok {
		cancel()
		return true
	}
	return false
}

// RunningCount reports the number of in-flight executions
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

func runKey(analysisID string, track constant.Track) string {
	return analysisID + "|" + string(track)
}

func (s *Scheduler) scanLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scheduler) scanOnce(ctx context.Context) {
	for _, executor := range s.executors {
		free := s.config.MaxConcurrentTasks - s.RunningCount()
		if free <= 0 {
			return
		}
		claimable, err := s.facade.ListClaimable(ctx, executor.Track(), executor.ClaimStatus(), free)
		if err != nil {
			log.Errorf("worker: scan %s track: %v", executor.Track(), err)
			continue
		}
		for _, analysis := range claimable {
			s.tryExecute(ctx, executor, analysis)
		}
	}
}

// tryExecute claims the track via the state service; losing the claim
// race to another instance is not an error.
func (s *Scheduler) tryExecute(ctx context.Context, executor Executor, analysis *model.Analysis) {
	claimed, err := s.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      executor.Track(),
		NewStatus:  executor.RunningStatus(),
	})
	if err != nil {
		if errors.CodeOf(err) == errors.CodeInvalidStateTransition {
			log.Debugf("worker: lost claim race for %s/%s", analysis.ID, executor.Track())
			return
		}
		log.Errorf("worker: claim %s/%s: %v", analysis.ID, executor.Track(), err)
		return
	}

	key := runKey(claimed.ID, executor.Track())
	execCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.running, key)
			s.mu.Unlock()
		}()
		s.execute(execCtx, executor, claimed)
	}()
}

func (s *Scheduler) execute(ctx context.Context, executor Executor, analysis *model.Analysis) {
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go s.heartbeatLoop(heartbeatCtx, analysis.ID)

	log.Infof("worker: executing %s track of analysis %s", executor.Track(), analysis.ID)
	started := time.Now()
	err := executor.Execute(ctx, analysis)
	if err == nil {
		metrics.ObserveTrackDuration(string(executor.Track()), "completed", time.Since(started))
		return
	}
	metrics.ObserveTrackDuration(string(executor.Track()), "failed", time.Since(started))

	reason := err.Error()
	if ctx.Err() != nil {
		reason = constant.ReasonCancelled
	}
	log.Errorf("worker: %s track of analysis %s failed: %v", executor.Track(), analysis.ID, err)

	if _, terr := s.stateService.Transition(context.Background(), state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      executor.Track(),
		NewStatus:  constant.StatusFailed,
		Error:      reason,
	}); terr != nil {
		log.Errorf("worker: record failure of %s/%s: %v", analysis.ID, executor.Track(), terr)
	}
}

// heartbeatLoop keeps the analysis visibly alive while any of its
// tracks runs on this instance. The state service throttles the
// actual writes.
func (s *Scheduler) heartbeatLoop(ctx context.Context, analysisID string) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.stateService.Heartbeat(ctx, analysisID); err != nil {
				log.Warnf("worker: heartbeat for %s: %v", analysisID, err)
			}
		}
	}
}
