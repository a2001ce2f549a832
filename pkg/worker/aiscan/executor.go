// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

// CacheResponse is the self-contained ai_scan_cache document.
type CacheResponse struct {
	SchemaVersion int           `json:"schema_version"`
	RepositoryID  string        `json:"repository_id"`
	CommitSHA     string        `json:"commit_sha"`
	Models        []ModelResult `json:"models"`
	Issues        []MergedIssue `json:"issues"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// Executor owns the AI-scan track
type Executor struct {
	stateService         *state.Service
	analysisFacade       *database.AnalysisFacade
	issueFacade          *database.IssueFacade
	chat                 ChatClient
	vcs                  gitrepo.VCS
	scanner              *chunker.Scanner
	cloneBaseDir         string
	investigationEnabled bool
	now                  func() time.Time
}

// NewExecutor creates the AI-scan executor
func NewExecutor(stateService *state.Service, analysisFacade *database.AnalysisFacade,
	issueFacade *database.IssueFacade, chat ChatClient, vcs gitrepo.VCS,
	scanner *chunker.Scanner, cloneBaseDir string, investigationEnabled bool) *Executor {
	return &Executor{
		stateService:         stateService,
		analysisFacade:       analysisFacade,
		issueFacade:          issueFacade,
		chat:                 chat,
		vcs:                  vcs,
		scanner:              scanner,
		cloneBaseDir:         cloneBaseDir,
		investigationEnabled: investigationEnabled,
		now:                  time.Now,
	}
}

func (e *Executor) Track() constant.Track { return constant.TrackAIScan }
func (e *Executor) ClaimStatus() string   { return constant.StatusPending }
func (e *Executor) RunningStatus() string { return constant.StatusRunning }

// Execute runs broad scan, merge, and investigation, then caches the
// result document on the analysis row.
func (e *Executor) Execute(ctx context.Context, analysis *model.Analysis) error {
	if len(e.chat.ModelIDs()) == 0 {
		return errors.NewError().WithCode(errors.CodeLackOfConfig).
			WithMessage("no scan models configured")
	}

	cloneURL, err := dispatch.CloneURL(analysis)
	if err != nil {
		return err
	}
	repoDir, err := e.vcs.CloneAtCommit(ctx, cloneURL, analysis.CommitSHA, e.cloneBaseDir)
	if err != nil {
		return err
	}
	files, err := e.scanner.Scan(repoDir)
	if err != nil {
		return err
	}

	repoView := BuildRepoView(files)
	e.progress(ctx, analysis.ID, 5)

	// Broad scan: half the progress budget, advanced per finished model.
	candidates, modelResults := BroadScan(ctx, e.chat, repoView, func(done, total int) {
		e.progress(ctx, analysis.ID, 5+45*done/total)
	})
	if allModelsFailed(modelResults) {
		return errors.NewError().WithCode(errors.CodeUpstreamUnavailable).
			WithMessagef("all %d scan models failed", len(modelResults))
	}

	merged := Merge(candidates)
	e.progress(ctx, analysis.ID, 55)

	if e.investigationEnabled {
		e.investigate(ctx, analysis.ID, repoDir, merged)
	}

	doc := &CacheResponse{
		SchemaVersion: 1,
		RepositoryID:  analysis.RepositoryID,
		CommitSHA:     analysis.CommitSHA,
		Models:        modelResults,
		Issues:        merged,
		GeneratedAt:   e.now().UTC(),
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapError(err, "encode scan cache", errors.InternalError)
	}
	if err := e.analysisFacade.UpdateColumns(ctx, analysis.ID, map[string]interface{}{
		"ai_scan_cache": docJSON,
	}); err != nil {
		return errors.WrapError(err, "persist scan cache", errors.InternalError)
	}

	if err := e.persistIssues(ctx, analysis, merged); err != nil {
		return err
	}

	_, err = e.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      constant.TrackAIScan,
		NewStatus:  constant.StatusCompleted,
	})
	return err
}

// investigate verifies critical and high findings in place, advancing
// progress per issue over the remaining budget.
func (e *Executor) investigate(ctx context.Context, analysisID, repoDir string, merged []MergedIssue) {
	var targets []int
	for i, issue := range merged {
		if issue.Severity == constant.SeverityCritical || issue.Severity == constant.SeverityHigh {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return
	}

	investigator := NewInvestigator(e.chat, e.chat.ModelIDs()[0], repoDir)
	for n, i := range targets {
		merged[i].Investigation = investigator.Investigate(ctx, merged[i])
		e.progress(ctx, analysisID, 55+40*(n+1)/len(targets))
	}
}

// persistIssues replaces the relational issue rows so list/filter
// endpoints do not have to unpack the cache document.
func (e *Executor) persistIssues(ctx context.Context, analysis *model.Analysis, merged []MergedIssue) error {
	if err := e.issueFacade.DeleteByAnalysis(ctx, analysis.ID); err != nil {
		return errors.WrapError(err, "clear previous scan issues", errors.InternalError)
	}

	rows := make([]*model.Issue, 0, len(merged))
	for _, issue := range merged {
		metadata := model.ExtType{
			"dimension": issue.Dimension,
			"models":    issue.Models,
			"evidence":  issue.Evidence,
		}
		if issue.Investigation != nil {
			metadata["verdict"] = issue.Investigation.Verdict
			metadata["verdict_explanation"] = issue.Investigation.Explanation
		}
		rows = append(rows, &model.Issue{
			ID:           uuid.NewString(),
			AnalysisID:   analysis.ID,
			RepositoryID: analysis.RepositoryID,
			Type:         issue.Category,
			Severity:     issue.Severity,
			Title:        issue.Title,
			Description:  issue.Description,
			FilePath:     issue.File,
			LineStart:    issue.LineStart,
			LineEnd:      issue.LineEnd,
			Status:       constant.IssueStatusOpen,
			Confidence:   issue.Confidence,
			Metadata:     metadata,
		})
	}
	if err := e.issueFacade.CreateBatch(ctx, rows); err != nil {
		return errors.WrapError(err, "persist scan issues", errors.InternalError)
	}
	return nil
}

func allModelsFailed(results []ModelResult) bool {
	for _, r := range results {
		if r.Error == "" {
			return false
		}
	}
	return true
}

func (e *Executor) progress(ctx context.Context, analysisID string, p int) {
	if err := e.stateService.ReportProgress(ctx, analysisID, constant.TrackAIScan, p); err != nil {
		log.Warnf("aiscan: report progress %d for %s: %v", p, analysisID, err)
	}
}
