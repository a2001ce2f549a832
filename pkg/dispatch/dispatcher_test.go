// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package dispatch

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
	"github.com/AMD-AGI/Primus-CodeLens/pkg/crypto"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

const testCommit = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type fakeVCS struct {
	branchHead string
}

func (f *fakeVCS) CloneAtCommit(_ context.Context, _, _, _ string) (string, error) {
	return "", nil
}

func (f *fakeVCS) ResolveBranchHead(_ context.Context, _, _ string) (string, error) {
	return f.branchHead, nil
}

func (f *fakeVCS) ChurnStats(_ context.Context, _ string) (map[string]*gitrepo.ChurnStat, error) {
	return nil, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, sqlmock.Sqlmock) {
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
	return NewDispatcher(facade, stateService, &fakeVCS{branchHead: testCommit}, 10*time.Minute), mock
}

func TestTriggerRejectsBadInput(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	t.Run("unknown trigger type", func(t *testing.T) {
		_, err := dispatcher.Trigger(context.Background(), TriggerRequest{
			RepositoryID: "repo-1",
			CommitSHA:    testCommit,
			TriggerType:  "surprise",
		})
		require.Error(t, err)
		assert.Equal(t, errors.RequestParameterInvalid, errors.CodeOf(err))
	})

	t.Run("short commit sha", func(t *testing.T) {
		_, err := dispatcher.Trigger(context.Background(), TriggerRequest{
			RepositoryID: "repo-1",
			CommitSHA:    "abc123",
			TriggerType:  constant.TriggerManual,
		})
		require.Error(t, err)
		assert.Equal(t, errors.RequestParameterInvalid, errors.CodeOf(err))
	})

	t.Run("no commit and no branch", func(t *testing.T) {
		_, err := dispatcher.Trigger(context.Background(), TriggerRequest{
			RepositoryID: "repo-1",
			TriggerType:  constant.TriggerManual,
		})
		require.Error(t, err)
		assert.Equal(t, errors.RequestParameterInvalid, errors.CodeOf(err))
	})
}

func TestTriggerConflictsOnFreshHeartbeat(t *testing.T) {
	dispatcher, mock := newTestDispatcher(t)

	heartbeat := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"id", "repository_id", "commit_sha", "status", "heartbeat_at", "updated_at"}).
		AddRow("an-1", "repo-1", testCommit, constant.StatusRunning, heartbeat, heartbeat)
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
		WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := dispatcher.Trigger(context.Background(), TriggerRequest{
		RepositoryID: "repo-1",
		CommitSHA:    testCommit,
		TriggerType:  constant.TriggerManual,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeAnalysisInFlight, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerTakesOverStaleAnalysis(t *testing.T) {
	dispatcher, mock := newTestDispatcher(t)

	stale := time.Now().Add(-time.Hour)
	inFlight := sqlmock.NewRows([]string{"id", "repository_id", "commit_sha", "status", "embeddings_status", "semantic_cache_status", "ai_scan_status", "heartbeat_at", "updated_at"}).
		AddRow("an-old", "repo-1", testCommit, constant.StatusRunning, constant.StatusRunning, constant.StatusNone, constant.StatusPending, stale, stale)
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
		WillReturnRows(inFlight)

	// One load + conditional failed-update per non-terminal track
	// (static, embeddings, ai_scan); the semantic-cache track is none.
	staleRow := func(static, embeddings, semantic, aiScan string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "status", "embeddings_status", "semantic_cache_status", "ai_scan_status"}).
			AddRow("an-old", static, embeddings, semantic, aiScan)
	}
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(staleRow(constant.StatusRunning, constant.StatusRunning, constant.StatusNone, constant.StatusPending))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(staleRow(constant.StatusFailed, constant.StatusRunning, constant.StatusNone, constant.StatusPending))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(staleRow(constant.StatusFailed, constant.StatusFailed, constant.StatusNone, constant.StatusPending))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	// Insert of the replacement analysis.
	mock.ExpectQuery(`INSERT INTO "analyses"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectTrackQueueing(mock, "an-new")
	mock.ExpectCommit()

	analysis, err := dispatcher.Trigger(context.Background(), TriggerRequest{
		RepositoryID: "repo-1",
		CommitSHA:    testCommit,
		TriggerType:  constant.TriggerWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, constant.StatusPending, analysis.Status)
	assert.Equal(t, constant.StatusPending, analysis.EmbeddingsStatus)
	assert.Equal(t, constant.StatusPending, analysis.AIScanStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectTrackQueueing mocks the three load+update pairs that move the
// static, embeddings, and ai_scan tracks of a fresh row to pending.
func expectTrackQueueing(mock sqlmock.Sqlmock, id string) {
	newRow := func(static, embeddings, aiScan string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "status", "embeddings_status", "semantic_cache_status", "ai_scan_status"}).
			AddRow(id, static, embeddings, constant.StatusNone, aiScan)
	}
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(newRow(constant.StatusNone, constant.StatusNone, constant.StatusNone))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(newRow(constant.StatusPending, constant.StatusNone, constant.StatusNone))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(newRow(constant.StatusPending, constant.StatusPending, constant.StatusNone))
	mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestTriggerLocksAndQueuesAllTracks(t *testing.T) {
	dispatcher, mock := newTestDispatcher(t)

	// The in-flight check, the insert, and the three pending
	// transitions all happen inside one transaction holding the
	// per-(repository, commit) advisory lock.
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "analyses"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectTrackQueueing(mock, "an-1")
	mock.ExpectCommit()

	analysis, err := dispatcher.Trigger(context.Background(), TriggerRequest{
		RepositoryID: "repo-1",
		CommitSHA:    testCommit,
		TriggerType:  constant.TriggerManual,
	})
	require.NoError(t, err)
	assert.Equal(t, constant.StatusPending, analysis.Status)
	assert.Equal(t, constant.StatusPending, analysis.EmbeddingsStatus)
	assert.Equal(t, constant.StatusPending, analysis.AIScanStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerSealsAccessToken(t *testing.T) {
	require.NoError(t, crypto.InitDefault("test secret"))
	dispatcher, mock := newTestDispatcher(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "analyses"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectTrackQueueing(mock, "an-1")
	mock.ExpectCommit()

	analysis, err := dispatcher.Trigger(context.Background(), TriggerRequest{
		RepositoryID: "repo-1",
		RepoURL:      "https://example.com/r.git",
		CommitSHA:    testCommit,
		TriggerType:  constant.TriggerManual,
		AccessToken:  "ghp_secret",
	})
	require.NoError(t, err)

	sealed := analysis.Metrics.GetStringValue("access_token")
	require.NotEmpty(t, sealed)
	assert.NotContains(t, sealed, "ghp_secret")

	opened, err := crypto.Default().Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", string(opened))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiterFixedWindow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute, true)
	base := time.Date(2026, 8, 24, 10, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("user-1")
		assert.True(t, allowed, "request %d should pass", i)
	}

	allowed, retryAfter := limiter.Allow("user-1")
	assert.False(t, allowed)
	assert.Equal(t, 50, retryAfter)

	// A different scope has its own window.
	allowed, _ = limiter.Allow("user-2")
	assert.True(t, allowed)

	// The next window resets the counter.
	base = base.Add(time.Minute)
	allowed, _ = limiter.Allow("user-1")
	assert.True(t, allowed)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute, false)
	allowed, _ := limiter.Allow("anyone")
	assert.True(t, allowed)
}
