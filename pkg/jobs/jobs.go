// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package jobs runs the scheduled maintenance jobs on cron expressions.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// Job is one scheduled maintenance task.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Runner drives registered jobs on their cron schedules
type Runner struct {
	cron *cron.Cron
	jobs []Job
}

// NewRunner creates an empty job runner
func NewRunner() *Runner {
	return &Runner{cron: cron.New()}
}

// Register adds a job to the runner. Must be called before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start schedules every registered job and begins the cron loop
func (r *Runner) Start(ctx context.Context) error {
	for _, job := range r.jobs {
		job := job
		_, err := r.cron.AddFunc(job.Schedule(), func() {
			started := time.Now()
			if err := job.Run(ctx); err != nil {
				log.Errorf("jobs: %s failed after %s: %v", job.Name(), time.Since(started), err)
				return
			}
			log.Debugf("jobs: %s finished in %s", job.Name(), time.Since(started))
		})
		if err != nil {
			return err
		}
		log.Infof("jobs: %s scheduled at %q", job.Name(), job.Schedule())
	}
	r.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs to return
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
