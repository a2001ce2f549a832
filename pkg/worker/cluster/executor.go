// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/vectorindex"
)

// Dead-code confidence levels. Without a full call graph the detector
// works from reference scanning over chunk excerpts, so confidence
// stays below 1.0.
const (
	heuristicConfidence = 0.7
	truncatedConfidence = 0.5
)

// complexityCentralityCap normalizes cyclomatic complexity into the
// [0,1] centrality input of the impact score.
const complexityCentralityCap = 20.0

// Index is the vector-index surface the analyzer needs.
type Index interface {
	ScrollByCommit(ctx context.Context, repositoryID, commitSHA string, chunkTypes []string, withVectors bool) ([]vectorindex.Point, error)
	SetClusterIDs(ctx context.Context, assignments map[string]int) error
}

// Executor owns the semantic-cache track
type Executor struct {
	stateService   *state.Service
	analysisFacade *database.AnalysisFacade
	findingFacade  *database.FindingFacade
	index          Index
	vcs            gitrepo.VCS
	coverage       gitrepo.CoverageAnalyzer
	insighter      *Insighter
	cloneBaseDir   string
	now            func() time.Time
}

// NewExecutor creates the cluster analyzer executor. coverage may be
// nil when no coverage source is configured.
func NewExecutor(stateService *state.Service, analysisFacade *database.AnalysisFacade,
	findingFacade *database.FindingFacade, index Index, vcs gitrepo.VCS,
	coverage gitrepo.CoverageAnalyzer, insighter *Insighter, cloneBaseDir string) *Executor {
	return &Executor{
		stateService:   stateService,
		analysisFacade: analysisFacade,
		findingFacade:  findingFacade,
		index:          index,
		vcs:            vcs,
		coverage:       coverage,
		insighter:      insighter,
		cloneBaseDir:   cloneBaseDir,
		now:            time.Now,
	}
}

func (e *Executor) Track() constant.Track { return constant.TrackSemanticCache }
func (e *Executor) ClaimStatus() string   { return constant.StatusPending }
func (e *Executor) RunningStatus() string { return constant.StatusComputing }

// CacheDocument is the semantic_cache blob persisted on the analysis.
type CacheDocument struct {
	SchemaVersion int            `json:"schema_version"`
	HealthScore   int            `json:"health_score"`
	MainConcerns  []string       `json:"main_concerns"`
	Counts        map[string]int `json:"counts"`
	Clusters      []ClusterInfo  `json:"clusters"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// ClusterInfo summarizes one cluster for the cache document.
type ClusterInfo struct {
	ID       int      `json:"id"`
	Size     int      `json:"size"`
	TopFiles []string `json:"top_files"`
}

// Execute runs the architecture analysis for one commit.
func (e *Executor) Execute(ctx context.Context, analysis *model.Analysis) error {
	points, err := e.index.ScrollByCommit(ctx, analysis.RepositoryID, analysis.CommitSHA,
		[]string{constant.ChunkTypeFunction, constant.ChunkTypeMethod}, true)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("no vector points for %s@%s", analysis.RepositoryID, analysis.CommitSHA)
	}
	e.progress(ctx, analysis.ID, 10)

	vectors := make([][]float32, len(points))
	for i, p := range points {
		vectors[i] = p.Vector
	}
	assignments := Cluster(vectors)
	e.progress(ctx, analysis.ID, 30)

	churn, repoDir := e.churnStats(ctx, analysis)

	deadCode := e.detectDeadCode(analysis, points, assignments, churn)
	if err := e.findingFacade.ReplaceDeadCodeFindings(ctx, analysis.ID, deadCode); err != nil {
		return errors.WrapError(err, "persist dead-code findings", errors.InternalError)
	}
	e.progress(ctx, analysis.ID, 50)

	hotSpots, err := e.persistHotSpots(ctx, analysis, churn, repoDir)
	if err != nil {
		return err
	}
	e.progress(ctx, analysis.ID, 70)

	writeBack := make(map[string]int, len(points))
	for i, p := range points {
		writeBack[p.ID] = assignments[i]
	}
	if err := e.index.SetClusterIDs(ctx, writeBack); err != nil {
		return err
	}
	e.progress(ctx, analysis.ID, 80)

	doc := e.buildDocument(points, assignments, len(deadCode), hotSpots)

	if _, err := e.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      constant.TrackSemanticCache,
		NewStatus:  constant.StatusGeneratingInsights,
	}); err != nil {
		return err
	}

	insights, err := e.insighter.Generate(ctx, analysis, doc, deadCode)
	if err != nil {
		return err
	}
	if err := e.findingFacade.ReplaceInsights(ctx, analysis.ID, insights); err != nil {
		return errors.WrapError(err, "persist insights", errors.InternalError)
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapError(err, "encode semantic cache", errors.InternalError)
	}
	if err := e.analysisFacade.UpdateColumns(ctx, analysis.ID, map[string]interface{}{
		"semantic_cache": docJSON,
	}); err != nil {
		return errors.WrapError(err, "persist semantic cache", errors.InternalError)
	}

	_, err = e.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      constant.TrackSemanticCache,
		NewStatus:  constant.StatusCompleted,
	})
	return err
}

// churnStats clones the commit and computes 90-day churn. Churn is an
// enrichment: failures degrade to empty stats instead of failing the
// track.
func (e *Executor) churnStats(ctx context.Context, analysis *model.Analysis) (map[string]*gitrepo.ChurnStat, string) {
	cloneURL, err := dispatch.CloneURL(analysis)
	if err != nil {
		return map[string]*gitrepo.ChurnStat{}, ""
	}
	repoDir, err := e.vcs.CloneAtCommit(ctx, cloneURL, analysis.CommitSHA, e.cloneBaseDir)
	if err != nil {
		log.Warnf("cluster: clone for churn stats: %v", err)
		return map[string]*gitrepo.ChurnStat{}, ""
	}
	churn, err := e.vcs.ChurnStats(ctx, repoDir)
	if err != nil {
		log.Warnf("cluster: churn stats: %v", err)
		return map[string]*gitrepo.ChurnStat{}, repoDir
	}
	return churn, repoDir
}

// detectDeadCode filters outliers through the architectural context and
// a reference scan over all chunk excerpts.
func (e *Executor) detectDeadCode(analysis *model.Analysis, points []vectorindex.Point,
	assignments []int, churn map[string]*gitrepo.ChurnStat) []*model.DeadCodeFinding {

	anyTruncated := false
	for _, p := range points {
		if p.Payload.ContentTruncated {
			anyTruncated = true
			break
		}
	}
	confidence := heuristicConfidence
	if anyTruncated {
		// Truncated excerpts can hide references.
		confidence = truncatedConfidence
	}

	var findings []*model.DeadCodeFinding
	for i, p := range points {
		if assignments[i] != OutlierID {
			continue
		}
		fileCtx := ClassifyFile(p.Payload.FilePath)
		if SuppressOutlier(fileCtx, p.Payload.Name) {
			continue
		}
		if isReferenced(points, i) {
			continue
		}

		ageDays := 0
		if stat, ok := churn[p.Payload.FilePath]; ok && !stat.LastModified.IsZero() {
			ageDays = int(e.now().Sub(stat.LastModified).Hours() / 24)
		}
		centrality := clamp01(p.Payload.CyclomaticComplexity / complexityCentralityCap)

		findings = append(findings, &model.DeadCodeFinding{
			ID:           uuid.NewString(),
			AnalysisID:   analysis.ID,
			RepositoryID: analysis.RepositoryID,
			FilePath:     p.Payload.FilePath,
			FunctionName: p.Payload.Name,
			LineStart:    p.Payload.LineStart,
			LineEnd:      p.Payload.LineEnd,
			LineCount:    p.Payload.LineCount,
			Confidence:   confidence,
			Evidence: fmt.Sprintf("%s is a cluster outlier and no other chunk references it",
				p.Payload.QualifiedName),
			SuggestedAction: "Verify the symbol is unused and remove it.",
			ImpactScore:     ImpactScore(p.Payload.LineCount, ageDays, centrality),
		})
	}
	return findings
}

// isReferenced scans every other chunk's excerpt for the symbol name.
func isReferenced(points []vectorindex.Point, idx int) bool {
	name := points[idx].Payload.Name
	if name == "" {
		return true
	}
	for j, other := range points {
		if j == idx || other.Payload.QualifiedName == points[idx].Payload.QualifiedName {
			continue
		}
		if strings.Contains(other.Payload.Content, name) {
			return true
		}
	}
	return false
}

// persistHotSpots writes churn rows and returns how many crossed the
// hot-spot threshold.
func (e *Executor) persistHotSpots(ctx context.Context, analysis *model.Analysis,
	churn map[string]*gitrepo.ChurnStat, repoDir string) (int, error) {

	coverage := map[string]float64{}
	if e.coverage != nil && repoDir != "" {
		cov, err := e.coverage.FileCoverage(ctx, repoDir)
		if err != nil {
			log.Warnf("cluster: coverage: %v", err)
		} else if cov != nil {
			coverage = cov
		}
	}

	paths := make([]string, 0, len(churn))
	for path := range churn {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	hotSpots := 0
	var rows []*model.FileChurn
	for _, path := range paths {
		stat := churn[path]
		var coverageRate *float64
		if rate, ok := coverage[path]; ok {
			r := rate
			coverageRate = &r
		}

		var riskFactors model.StringList
		if stat.Changes > constant.HotSpotChangeThreshold {
			hotSpots++
			riskFactors = append(riskFactors, "high_churn")
			if coverageRate != nil && *coverageRate < 0.5 {
				riskFactors = append(riskFactors, "low_coverage")
			}
			if stat.UniqueAuthors >= 4 {
				riskFactors = append(riskFactors, "many_authors")
			}
		}

		rows = append(rows, &model.FileChurn{
			ID:            uuid.NewString(),
			AnalysisID:    analysis.ID,
			FilePath:      path,
			Changes90d:    stat.Changes,
			CoverageRate:  coverageRate,
			UniqueAuthors: stat.UniqueAuthors,
			RiskFactors:   riskFactors,
			RiskScore:     RiskScore(stat.Changes, coverageRate, stat.UniqueAuthors),
		})
	}
	if err := e.findingFacade.UpsertFileChurns(ctx, rows); err != nil {
		return 0, errors.WrapError(err, "persist churn records", errors.InternalError)
	}
	return hotSpots, nil
}

// buildDocument condenses the findings into the cache document the LLM
// summary and the architecture endpoint read.
func (e *Executor) buildDocument(points []vectorindex.Point, assignments []int, deadCode, hotSpots int) *CacheDocument {
	bySize := map[int]int{}
	files := map[int]map[string]bool{}
	outliers := 0
	for i, cluster := range assignments {
		if cluster == OutlierID {
			outliers++
			continue
		}
		bySize[cluster]++
		if files[cluster] == nil {
			files[cluster] = map[string]bool{}
		}
		files[cluster][points[i].Payload.FilePath] = true
	}

	clusters := make([]ClusterInfo, 0, len(bySize))
	for id, size := range bySize {
		var topFiles []string
		for path := range files[id] {
			topFiles = append(topFiles, path)
		}
		sort.Strings(topFiles)
		if len(topFiles) > 5 {
			topFiles = topFiles[:5]
		}
		clusters = append(clusters, ClusterInfo{ID: id, Size: size, TopFiles: topFiles})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	var concerns []string
	if deadCode > 0 {
		concerns = append(concerns, fmt.Sprintf("%d dead-code candidates", deadCode))
	}
	if hotSpots > 0 {
		concerns = append(concerns, fmt.Sprintf("%d hot-spot files with high churn", hotSpots))
	}
	if len(points) > 0 && outliers*4 > len(points) {
		concerns = append(concerns, "over a quarter of symbols fall outside any cluster")
	}

	return &CacheDocument{
		SchemaVersion: 1,
		HealthScore:   HealthScore(len(points), outliers, deadCode, hotSpots),
		MainConcerns:  concerns,
		Counts: map[string]int{
			"points":    len(points),
			"clusters":  len(clusters),
			"outliers":  outliers,
			"dead_code": deadCode,
			"hot_spots": hotSpots,
		},
		Clusters:    clusters,
		GeneratedAt: e.now().UTC(),
	}
}

func (e *Executor) progress(ctx context.Context, analysisID string, p int) {
	if err := e.stateService.ReportProgress(ctx, analysisID, constant.TrackSemanticCache, p); err != nil {
		log.Warnf("cluster: report progress %d for %s: %v", p, analysisID, err)
	}
}
