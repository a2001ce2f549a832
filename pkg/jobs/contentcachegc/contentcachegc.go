// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package contentcachegc reclaims content-cache storage: failed caches
// past their TTL, uploads orphaned by a dead worker, and ready caches
// aged out of the LRU window. Blobs go first so an interrupted sweep
// leaves only rows that the next sweep re-collects.
package contentcachegc

import (
	"context"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/contentcache"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
)

const defaultSchedule = "@every 10m"

// agedOutBatchLimit bounds one LRU sweep so a large backlog drains over
// several runs instead of one long transactionless scan.
const agedOutBatchLimit = 50

// Index is the vector-index surface the age-out sweep needs. May be
// nil when no index is configured.
type Index interface {
	DeleteByCommit(ctx context.Context, repositoryID, commitSHA string) error
}

// GCJob is the content cache garbage collector
type GCJob struct {
	facade   *database.ContentCacheFacade
	cache    *contentcache.Service
	index    Index
	jobsConf config.JobsConfig
	now      func() time.Time
}

// NewGCJob creates the content cache GC job
func NewGCJob(facade *database.ContentCacheFacade, cache *contentcache.Service, index Index, jobsConf config.JobsConfig) *GCJob {
	return &GCJob{facade: facade, cache: cache, index: index, jobsConf: jobsConf, now: time.Now}
}

func (j *GCJob) Name() string { return "content_cache_gc" }

func (j *GCJob) Schedule() string {
	if j.jobsConf.GCCron != "" {
		return j.jobsConf.GCCron
	}
	return defaultSchedule
}

// Run performs the three sweeps. A cache that fails to delete is logged
// and left for the next run; the sweep itself keeps going.
func (j *GCJob) Run(ctx context.Context) error {
	now := j.now()

	failed, err := j.facade.ListFailedCaches(ctx, now.Add(-j.jobsConf.GetFailedTTL()))
	if err != nil {
		return err
	}
	deleted := j.deleteCaches(ctx, failed, "failed")

	orphaned, err := j.facade.ListOrphanedUploading(ctx, now.Add(-j.jobsConf.GetUploadingTTL()))
	if err != nil {
		return err
	}
	deleted += j.deleteCaches(ctx, orphaned, "orphaned upload")

	aged, err := j.facade.ListAgedOut(ctx, now.Add(-j.jobsConf.GetAgeTTL()), agedOutBatchLimit)
	if err != nil {
		return err
	}
	// An aged-out commit also releases its vector points; failed and
	// orphaned caches keep theirs, a retry reuses them.
	for _, cache := range aged {
		if j.index == nil {
			break
		}
		if err := j.index.DeleteByCommit(ctx, cache.RepositoryID, cache.CommitSHA); err != nil {
			log.Warnf("contentcachegc: delete vector points for %s@%s: %v",
				cache.RepositoryID, cache.CommitSHA, err)
		}
	}
	deleted += j.deleteCaches(ctx, aged, "aged out")

	if deleted > 0 {
		metrics.ObserveGCDeleted(deleted)
		log.Infof("contentcachegc: reclaimed %d caches", deleted)
	}
	return nil
}

func (j *GCJob) deleteCaches(ctx context.Context, caches []*model.RepoContentCache, reason string) int {
	deleted := 0
	for _, cache := range caches {
		if err := j.cache.DeleteAll(ctx, cache); err != nil {
			log.Warnf("contentcachegc: delete %s cache %s (%s@%s): %v",
				reason, cache.ID, cache.RepositoryID, cache.CommitSHA, err)
			continue
		}
		deleted++
	}
	return deleted
}
