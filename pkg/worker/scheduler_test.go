// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

type fakeExecutor struct {
	track   constant.Track
	execute func(ctx context.Context, analysis *model.Analysis) error
	done    chan string
}

func (f *fakeExecutor) Track() constant.Track { return f.track }
func (f *fakeExecutor) ClaimStatus() string   { return constant.StatusPending }
func (f *fakeExecutor) RunningStatus() string { return constant.StatusRunning }

func (f *fakeExecutor) Execute(ctx context.Context, analysis *model.Analysis) error {
	defer func() { f.done <- analysis.ID }()
	if f.execute != nil {
		return f.execute(ctx, analysis)
	}
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	facade := database.NewAnalysisFacadeWithDB(gormDB)
	stateService := state.NewService(facade, events.NewBus(), state.DefaultHeartbeatThrottle)
	cfg := &SchedulerConfig{
		InstanceID:         "test-worker",
		ScanInterval:       time.Hour,
		MaxConcurrentTasks: 2,
		HeartbeatInterval:  time.Hour,
	}
	return NewScheduler(cfg, facade, stateService), mock
}

func waitForIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.RunningCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler did not drain in time")
}

func analysisStatusRows(id, embeddings string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "embeddings_status", "semantic_cache_status", "ai_scan_status"}).
		AddRow(id, constant.StatusCompleted, embeddings, constant.StatusNone, constant.StatusNone)
}

func TestScanClaimsAndExecutes(t *testing.T) {
	s, mock := newTestScheduler(t)
	exec := &fakeExecutor{track: constant.TrackEmbeddings, done: make(chan string, 1)}
	s.RegisterExecutor(exec)

	// Scan finds one claimable analysis.
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE embeddings_status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "embeddings_status"}).
			AddRow("an-1", constant.StatusPending))
	// Claim: load + conditional pending -> running update.
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(analysisStatusRows("an-1", constant.StatusPending))
	mock.ExpectExec(`UPDATE "analyses" SET .* WHERE id = \$\d+ AND embeddings_status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.scanOnce(context.Background())

	select {
	case id := <-exec.done:
		assert.Equal(t, "an-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("executor was not invoked")
	}
	waitForIdle(t, s)
	s.wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanSkipsLostClaimRace(t *testing.T) {
	s, mock := newTestScheduler(t)
	exec := &fakeExecutor{track: constant.TrackEmbeddings, done: make(chan string, 1)}
	s.RegisterExecutor(exec)

	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE embeddings_status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "embeddings_status"}).
			AddRow("an-1", constant.StatusPending))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(analysisStatusRows("an-1", constant.StatusPending))
	// Another instance claimed first: the guarded update matches no rows.
	mock.ExpectExec(`UPDATE "analyses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s.scanOnce(context.Background())

	select {
	case <-exec.done:
		t.Fatal("executor should not run after a lost claim")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, s.RunningCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorFailureMarksTrackFailed(t *testing.T) {
	s, mock := newTestScheduler(t)
	exec := &fakeExecutor{
		track: constant.TrackEmbeddings,
		done:  make(chan string, 1),
		execute: func(_ context.Context, _ *model.Analysis) error {
			return assert.AnError
		},
	}
	s.RegisterExecutor(exec)

	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE embeddings_status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "embeddings_status"}).
			AddRow("an-1", constant.StatusPending))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(analysisStatusRows("an-1", constant.StatusPending))
	mock.ExpectExec(`UPDATE "analyses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Failure path: reload + running -> failed update.
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(analysisStatusRows("an-1", constant.StatusRunning))
	mock.ExpectExec(`UPDATE "analyses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.scanOnce(context.Background())
	<-exec.done
	waitForIdle(t, s)
	s.wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConcurrencyCapStopsScan(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.config.MaxConcurrentTasks = 0
	exec := &fakeExecutor{track: constant.TrackEmbeddings, done: make(chan string, 1)}
	s.RegisterExecutor(exec)

	// With no free slots the scan must not query at all; the sqlmock
	// would fail on an unexpected query.
	s.scanOnce(context.Background())
	assert.Equal(t, 0, s.RunningCount())
}
