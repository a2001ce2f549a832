// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package embeddings produces vector-index points for one commit and
// populates the content cache alongside. Completing this track is what
// queues the semantic-cache analyzer.
package embeddings

import (
	"context"
	"os"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/contentcache"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/vectorindex"
)

// Embedder is the embedding-provider surface this executor needs.
type Embedder interface {
	EmbedWithProgress(ctx context.Context, texts []string, onBatch func(done, total int)) ([][]float32, error)
}

// Index is the vector-index surface this executor needs.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []vectorindex.Point) error
}

// Executor owns the embeddings track
type Executor struct {
	stateService *state.Service
	vcs          gitrepo.VCS
	scanner      *chunker.Scanner
	chunker      chunker.Chunker
	embedder     Embedder
	index        Index
	cache        *contentcache.Service
	cloneBaseDir string
}

// NewExecutor creates the embeddings executor
func NewExecutor(stateService *state.Service, vcs gitrepo.VCS, scanner *chunker.Scanner,
	ch chunker.Chunker, embedder Embedder, index Index,
	cache *contentcache.Service, cloneBaseDir string) *Executor {
	return &Executor{
		stateService: stateService,
		vcs:          vcs,
		scanner:      scanner,
		chunker:      ch,
		embedder:     embedder,
		index:        index,
		cache:        cache,
		cloneBaseDir: cloneBaseDir,
	}
}

func (e *Executor) Track() constant.Track { return constant.TrackEmbeddings }
func (e *Executor) ClaimStatus() string   { return constant.StatusPending }
func (e *Executor) RunningStatus() string { return constant.StatusRunning }

// Execute runs the embeddings protocol: clone, chunk, embed in batches,
// upsert points, and populate the content cache concurrently. Point ids
// derive from qualified names, so re-runs of the same commit overwrite
// instead of duplicating.
func (e *Executor) Execute(ctx context.Context, analysis *model.Analysis) error {
	cloneURL, err := dispatch.CloneURL(analysis)
	if err != nil {
		return err
	}
	e.progress(ctx, analysis.ID, 1)

	repoDir, err := e.vcs.CloneAtCommit(ctx, cloneURL, analysis.CommitSHA, e.cloneBaseDir)
	if err != nil {
		return err
	}

	files, err := e.scanner.Scan(repoDir)
	if err != nil {
		return err
	}

	// Content cache population runs alongside the embedding requests;
	// both must succeed before the track completes.
	cacheErr := make(chan error, 1)
	go func() {
		cacheErr <- e.cache.Ensure(ctx, analysis.RepositoryID, analysis.CommitSHA, repoDir)
	}()

	points, texts := e.collectChunks(analysis, files)
	log.Infof("embeddings: analysis %s: %d files, %d chunks", analysis.ID, len(files), len(points))

	if err := e.index.EnsureCollection(ctx); err != nil {
		<-cacheErr
		return err
	}

	vectors, err := e.embedder.EmbedWithProgress(ctx, texts, func(done, total int) {
		// Reserve 1 and 99 for the clone and upsert phases.
		e.progress(ctx, analysis.ID, clampProgress(1+done*98/total))
	})
	if err != nil {
		<-cacheErr
		return err
	}
	for i := range points {
		points[i].Vector = vectors[i]
	}

	if err := e.index.Upsert(ctx, points); err != nil {
		<-cacheErr
		return err
	}
	e.progress(ctx, analysis.ID, 99)

	if err := <-cacheErr; err != nil {
		return err
	}

	_, err = e.stateService.Transition(ctx, state.TransitionRequest{
		AnalysisID: analysis.ID,
		Track:      constant.TrackEmbeddings,
		NewStatus:  constant.StatusCompleted,
	})
	return err
}

// collectChunks chunks every readable file into points plus the texts
// to embed, index-aligned.
func (e *Executor) collectChunks(analysis *model.Analysis, files []chunker.SourceFile) ([]vectorindex.Point, []string) {
	var points []vectorindex.Point
	var texts []string
	for _, file := range files {
		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			log.Warnf("embeddings: read %s: %v", file.Path, err)
			continue
		}
		for _, chunk := range e.chunker.Chunk(file, content) {
			payload := vectorindex.NewPayload(
				analysis.RepositoryID, analysis.CommitSHA,
				chunk.FilePath, chunk.Language, chunk.ChunkType,
				chunk.Name, chunk.Content)
			payload.LineStart = chunk.LineStart
			payload.LineEnd = chunk.LineEnd
			payload.ParentName = chunk.ParentName
			payload.Docstring = chunk.Docstring
			payload.TokenEstimate = chunk.TokenEstimate
			payload.Level = chunk.Level
			payload.QualifiedName = chunk.QualifiedName
			payload.CyclomaticComplexity = chunk.CyclomaticComplexity
			payload.LineCount = chunk.LineCount

			points = append(points, vectorindex.Point{
				ID:      chunk.PointID(analysis.RepositoryID, analysis.CommitSHA),
				Payload: payload,
			})
			texts = append(texts, chunk.Content)
		}
	}
	return points, texts
}

func (e *Executor) progress(ctx context.Context, analysisID string, p int) {
	if err := e.stateService.ReportProgress(ctx, analysisID, constant.TrackEmbeddings, p); err != nil {
		log.Warnf("embeddings: report progress %d for %s: %v", p, analysisID, err)
	}
}

// clampProgress keeps in-flight progress inside [1,99]; 0 and 100 are
// owned by the status anchors.
func clampProgress(p int) int {
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}
