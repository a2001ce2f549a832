// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package staticanalysis

import (
	"context"
	"fmt"
	"os"

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

// Executor runs the static quality pass over one commit
type Executor struct {
	stateService   *state.Service
	analysisFacade *database.AnalysisFacade
	issueFacade    *database.IssueFacade
	vcs            gitrepo.VCS
	scanner        *chunker.Scanner
	chunker        chunker.Chunker
	cloneBaseDir   string
}

// NewExecutor creates the static analysis executor
func NewExecutor(stateService *state.Service, analysisFacade *database.AnalysisFacade,
	issueFacade *database.IssueFacade, vcs gitrepo.VCS,
	scanner *chunker.Scanner, ch chunker.Chunker, cloneBaseDir string) *Executor {
	return &Executor{
		stateService:   stateService,
		analysisFacade: analysisFacade,
		issueFacade:    issueFacade,
		vcs:            vcs,
		scanner:        scanner,
		chunker:        ch,
		cloneBaseDir:   cloneBaseDir,
	}
}

func (e *Executor) Track() constant.Track { return constant.TrackStatic }
func (e *Executor) ClaimStatus() string   { return constant.StatusPending }
func (e *Executor) RunningStatus() string { return constant.StatusRunning }

// Execute clones the commit, measures every source file, and persists
// the aggregate metrics plus rule-based issues.
func (e *Executor) Execute(ctx context.Context, analysis *model.Analysis) error {
	cloneURL, err := dispatch.CloneURL(analysis)
	if err != nil {
		return err
	}

	repoDir, err := e.vcs.CloneAtCommit(ctx, cloneURL, analysis.CommitSHA, e.cloneBaseDir)
	if err != nil {
		return err
	}
	e.progress(ctx, analysis.ID, 10)

	files, err := e.scanner.Scan(repoDir)
	if err != nil {
		return err
	}
	e.progress(ctx, analysis.ID, 20)

	chunksByFile := make(map[string][]chunker.Chunk, len(files))
	var issues []*model.Issue
	for i, file := range files {
		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			log.Warnf("staticanalysis: read %s: %v", file.Path, err)
			continue
		}
		chunks := e.chunker.Chunk(file, content)
		chunksByFile[file.Path] = chunks
		issues = append(issues, issuesForChunks(analysis, chunks)...)

		if len(files) > 10 && i%(len(files)/10) == 0 {
			e.progress(ctx, analysis.ID, 20+70*i/len(files))
		}
	}

	metrics := Aggregate(files, chunksByFile)
	score := VCIScore(metrics)

	if err := e.issueFacade.DeleteByAnalysis(ctx, analysis.ID); err != nil {
		return errors.WrapError(err, "clear previous issues", errors.InternalError)
	}
	if err := e.issueFacade.CreateBatch(ctx, issues); err != nil {
		return errors.WrapError(err, "persist issues", errors.InternalError)
	}

	// The dispatch-time keys (plain repo_url, sealed token) survive the
	// metrics rewrite.
	resultMetrics := model.ExtType{
		"repo_url":          analysis.Metrics.GetStringValue("repo_url"),
		"total_files":       metrics.TotalFiles,
		"total_lines":       metrics.TotalLines,
		"total_functions":   metrics.TotalFunctions,
		"language_files":    metrics.LanguageFiles,
		"avg_complexity":    metrics.AvgComplexity,
		"max_complexity":    metrics.MaxComplexity,
		"long_functions":    metrics.LongFunctions,
		"complex_functions": metrics.ComplexFunctions,
	}
	if sealed := analysis.Metrics.GetStringValue("access_token"); sealed != "" {
		resultMetrics["access_token"] = sealed
	}
	updates := map[string]interface{}{
		"vci_score":       score,
		"tech_debt_level": TechDebtLevel(score),
		"metrics":         resultMetrics,
	}
	if err := e.analysisFacade.UpdateColumns(ctx, analysis.ID, updates); err != nil {
		return errors.WrapError(err, "persist metrics", errors.InternalError)
	}

	_, err = e.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      constant.TrackStatic,
		NewStatus:  constant.StatusCompleted,
	})
	return err
}

func (e *Executor) progress(ctx context.Context, analysisID string, p int) {
	if err := e.stateService.ReportProgress(ctx, analysisID, constant.TrackStatic, p); err != nil {
		log.Warnf("staticanalysis: report progress %d for %s: %v", p, analysisID, err)
	}
}

// issuesForChunks applies the complexity and length rules to one file's
// chunks
func issuesForChunks(analysis *model.Analysis, chunks []chunker.Chunk) []*model.Issue {
	var issues []*model.Issue
	for _, chunk := range chunks {
		if chunk.ChunkType == constant.ChunkTypeModule {
			continue
		}
		if chunk.CyclomaticComplexity > ComplexFunctionThreshold {
			severity := constant.SeverityMedium
			if chunk.CyclomaticComplexity > SevereComplexityThreshold {
				severity = constant.SeverityHigh
			}
			issues = append(issues, &model.Issue{
				ID:           uuid.NewString(),
				AnalysisID:   analysis.ID,
				RepositoryID: analysis.RepositoryID,
				Type:         "high_complexity",
				Severity:     severity,
				Title:        fmt.Sprintf("%s has cyclomatic complexity %.0f", chunk.QualifiedName, chunk.CyclomaticComplexity),
				Description: fmt.Sprintf("Function %s spans %d branches; consider splitting it into smaller units.",
					chunk.Name, int(chunk.CyclomaticComplexity)),
				FilePath:   chunk.FilePath,
				LineStart:  chunk.LineStart,
				LineEnd:    chunk.LineEnd,
				Status:     constant.IssueStatusOpen,
				Confidence: 1.0,
			})
		}
		if chunk.LineCount > LongFunctionLines {
			severity := constant.SeverityLow
			if chunk.LineCount > VeryLongFunctionLines {
				severity = constant.SeverityMedium
			}
			issues = append(issues, &model.Issue{
				ID:           uuid.NewString(),
				AnalysisID:   analysis.ID,
				RepositoryID: analysis.RepositoryID,
				Type:         "long_function",
				Severity:     severity,
				Title:        fmt.Sprintf("%s is %d lines long", chunk.QualifiedName, chunk.LineCount),
				Description: fmt.Sprintf("Function %s exceeds %d lines; long bodies hide control flow and resist testing.",
					chunk.Name, LongFunctionLines),
				FilePath:   chunk.FilePath,
				LineStart:  chunk.LineStart,
				LineEnd:    chunk.LineEnd,
				Status:     constant.IssueStatusOpen,
				Confidence: 1.0,
			})
		}
	}
	return issues
}
