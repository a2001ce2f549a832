// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/contentcache"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/jobs"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/jobs/contentcachegc"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/jobs/stuckdetection"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/objectstorage"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/sql"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/vectorindex"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if _, err := sql.InitDefault(cfg.Database); err != nil {
		log.Fatalf("init database: %v", err)
	}

	store, err := objectstorage.NewClient(&cfg.ObjectStorage)
	if err != nil {
		log.Fatalf("init object storage: %v", err)
	}

	contentCacheFacade := database.NewContentCacheFacade()
	cache := contentcache.NewService(contentCacheFacade, store,
		chunker.NewScanner(cfg.Pipeline.GetMaxFileSize()))
	index := vectorindex.NewClient(&cfg.VectorIndex)
	analysisFacade := database.NewAnalysisFacade()
	stateService := state.NewService(analysisFacade, events.NewBus(), cfg.Pipeline.GetHeartbeatThrottle())

	runner := jobs.NewRunner()
	runner.Register(contentcachegc.NewGCJob(contentCacheFacade, cache, index, cfg.Jobs))
	runner.Register(stuckdetection.NewDetectionJob(analysisFacade, stateService,
		cfg.Jobs, cfg.Pipeline.GetStuckThreshold()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("start jobs: %v", err)
	}
	log.Infof("codelens-jobs started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("codelens-jobs shutting down")
	cancel()
	runner.Stop()
}
