// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/aiclient"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/contentcache"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/crypto"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/embedding"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/objectstorage"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/sql"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/vectorindex"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/worker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/worker/aiscan"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/worker/cluster"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/worker/embeddings"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/worker/staticanalysis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if _, err := sql.InitDefault(cfg.Database); err != nil {
		log.Fatalf("init database: %v", err)
	}
	if key, err := cfg.GetSecretKey(); err != nil {
		log.Warnf("secret key unavailable, analyses with sealed tokens will fail: %v", err)
	} else if err := crypto.InitDefault(key); err != nil {
		log.Fatalf("init sealer: %v", err)
	}

	store, err := objectstorage.NewClient(&cfg.ObjectStorage)
	if err != nil {
		log.Fatalf("init object storage: %v", err)
	}
	index := vectorindex.NewClient(&cfg.VectorIndex)
	if err := index.EnsureCollection(context.Background()); err != nil {
		log.Fatalf("ensure vector collection: %v", err)
	}

	analysisFacade := database.NewAnalysisFacade()
	issueFacade := database.NewIssueFacade()
	findingFacade := database.NewFindingFacade()
	contentCacheFacade := database.NewContentCacheFacade()

	stateService := state.NewService(analysisFacade, events.NewBus(), cfg.Pipeline.GetHeartbeatThrottle())
	vcs := gitrepo.NewCLI()
	scanner := chunker.NewScanner(cfg.Pipeline.GetMaxFileSize())
	codeChunker := chunker.NewHeuristicChunker(0)
	cache := contentcache.NewService(contentCacheFacade, store, scanner)
	embedder := embedding.NewClient(&cfg.Embedding)
	chat := aiclient.New(cfg.Models)
	cloneBaseDir := cfg.Pipeline.GetCloneBaseDir()

	instanceID, _ := os.Hostname()
	scheduler := worker.NewScheduler(
		workerConfig(cfg, instanceID), analysisFacade, stateService)

	scheduler.RegisterExecutor(staticanalysis.NewExecutor(
		stateService, analysisFacade, issueFacade, vcs, scanner, codeChunker, cloneBaseDir))
	scheduler.RegisterExecutor(embeddings.NewExecutor(
		stateService, vcs, scanner, codeChunker, embedder, index, cache, cloneBaseDir))
	scheduler.RegisterExecutor(cluster.NewExecutor(
		stateService, analysisFacade, findingFacade, index, vcs,
		gitrepo.NewArtifactCoverage(), cluster.NewInsighter(chat), cloneBaseDir))
	scheduler.RegisterExecutor(aiscan.NewExecutor(
		stateService, analysisFacade, issueFacade, chat, vcs, scanner,
		cloneBaseDir, cfg.Pipeline.IsInvestigationEnabled()))

	scheduler.Start()
	log.Infof("codelens-worker %s started", instanceID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("codelens-worker shutting down")
	scheduler.Stop()
}

func workerConfig(cfg *config.Config, instanceID string) *worker.SchedulerConfig {
	if cfg.Worker.InstanceID != "" {
		instanceID = cfg.Worker.InstanceID
	}
	sc := worker.DefaultSchedulerConfig(instanceID)
	sc.ScanInterval = cfg.Worker.GetScanInterval()
	sc.MaxConcurrentTasks = cfg.Worker.GetMaxConcurrentTasks()
	sc.HeartbeatInterval = cfg.Pipeline.GetHeartbeatThrottle()
	return sc
}
