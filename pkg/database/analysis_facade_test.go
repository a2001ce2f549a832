// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

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
)

// newMockDB opens a gorm connection over sqlmock. Default transactions
// are skipped so expectations stay one statement per call.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
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
	return gormDB, mock
}

func TestAnalysisFacadeGetByID(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "repository_id", "commit_sha", "status", "embeddings_status"}).
			AddRow("an-1", "repo-1", "abc123", constant.StatusRunning, constant.StatusNone)
		mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
			WithArgs("an-1", 1).
			WillReturnRows(rows)

		analysis, err := facade.GetByID(context.Background(), "an-1")
		require.NoError(t, err)
		require.NotNil(t, analysis)
		assert.Equal(t, "repo-1", analysis.RepositoryID)
		assert.Equal(t, constant.StatusRunning, analysis.Status)
	})

	t.Run("not found returns nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
			WithArgs("missing", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		analysis, err := facade.GetByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, analysis)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisFacadeUpdateColumns(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)

	t.Run("row updated", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := facade.UpdateColumns(context.Background(), "an-1", map[string]interface{}{
			"status":   constant.StatusRunning,
			"progress": 10,
		})
		assert.NoError(t, err)
	})

	t.Run("missing row reported", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := facade.UpdateColumns(context.Background(), "missing", map[string]interface{}{
			"status": constant.StatusRunning,
		})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisFacadeUpdateColumnsIf(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)

	t.Run("guard holds", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := facade.UpdateColumnsIf(context.Background(), "an-1",
			"embeddings_status", constant.StatusPending,
			map[string]interface{}{"embeddings_status": constant.StatusRunning})
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("guard lost race", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := facade.UpdateColumnsIf(context.Background(), "an-1",
			"embeddings_status", constant.StatusPending,
			map[string]interface{}{"embeddings_status": constant.StatusRunning})
		require.NoError(t, err)
		assert.False(t, changed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisFacadeUpdateHeartbeat(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)
	now := time.Now()

	t.Run("beat written", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET .*heartbeat_at`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		written, err := facade.UpdateHeartbeat(context.Background(), "an-1", now, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, written)
	})

	t.Run("throttled beat skipped", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "analyses" SET .*heartbeat_at`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		written, err := facade.UpdateHeartbeat(context.Background(), "an-1", now, 5*time.Second)
		require.NoError(t, err)
		assert.False(t, written)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisFacadeFindInFlight(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)

	t.Run("active row found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "repository_id", "commit_sha", "status"}).
			AddRow("an-2", "repo-1", "abc123", constant.StatusRunning)
		mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
			WithArgs("repo-1", "abc123", 1).
			WillReturnRows(rows)

		analysis, err := facade.FindInFlight(context.Background(), "repo-1", "abc123")
		require.NoError(t, err)
		require.NotNil(t, analysis)
		assert.Equal(t, "an-2", analysis.ID)
	})

	t.Run("no active row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE \(repository_id = \$1 AND commit_sha = \$2\)`).
			WithArgs("repo-1", "def456", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		analysis, err := facade.FindInFlight(context.Background(), "repo-1", "def456")
		require.NoError(t, err)
		assert.Nil(t, analysis)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisFacadeListStuck(t *testing.T) {
	gormDB, mock := newMockDB(t)
	facade := NewAnalysisFacadeWithDB(gormDB)

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow("an-3", constant.StatusRunning).
		AddRow("an-4", constant.StatusRunning)
	mock.ExpectQuery(`SELECT .* FROM "analyses"`).
		WillReturnRows(rows)

	stuck, err := facade.ListStuck(context.Background(), time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stuck, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestColumnsForTrack(t *testing.T) {
	tests := []struct {
		name       string
		track      constant.Track
		wantStatus string
	}{
		{"static", constant.TrackStatic, "status"},
		{"embeddings", constant.TrackEmbeddings, "embeddings_status"},
		{"semantic cache", constant.TrackSemanticCache, "semantic_cache_status"},
		{"ai scan", constant.TrackAIScan, "ai_scan_status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := ColumnsForTrack(tt.track)
			assert.Equal(t, tt.wantStatus, cols.Status)
			assert.NotEmpty(t, cols.Progress)
			assert.NotEmpty(t, cols.Error)
		})
	}
}
