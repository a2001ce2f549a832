// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/api"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/api/handlers"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/crypto"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/sql"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

const defaultHTTPPort = 8080

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if _, err := sql.InitDefault(cfg.Database); err != nil {
		log.Fatalf("init database: %v", err)
	}
	initSealer(cfg)

	bus := events.NewBus()
	analysisFacade := database.NewAnalysisFacade()
	stateService := state.NewService(analysisFacade, bus, cfg.Pipeline.GetHeartbeatThrottle())
	dispatcher := dispatch.NewDispatcher(analysisFacade, stateService,
		gitrepo.NewCLI(), cfg.Pipeline.GetStuckThreshold())
	limiter := dispatch.NewRateLimiter(cfg.RateLimit.GetPerMinute(), time.Minute,
		cfg.RateLimit.IsEnabled())

	handler := handlers.NewHandler(dispatcher, limiter, analysisFacade,
		database.NewIssueFacade(), database.NewFindingFacade(), bus,
		cfg.Middleware.GetSSEPollInterval())
	engine := api.NewEngine(cfg, handler)

	port := cfg.HttpPort
	if port == 0 {
		port = defaultHTTPPort
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	go func() {
		log.Infof("codelens-api listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("codelens-api shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// initSealer enables access-token sealing when the secret key is
// present. Requests without tokens work either way.
func initSealer(cfg *config.Config) {
	key, err := cfg.GetSecretKey()
	if err != nil {
		log.Warnf("secret key unavailable, access tokens are rejected: %v", err)
		return
	}
	if err := crypto.InitDefault(key); err != nil {
		log.Fatalf("init sealer: %v", err)
	}
}
