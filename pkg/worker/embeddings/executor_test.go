// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package embeddings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/contentcache"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/vectorindex"
)

const testCommit = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

type fakeVCS struct{ dir string }

func (f *fakeVCS) CloneAtCommit(_ context.Context, _, _, _ string) (string, error) {
	return f.dir, nil
}
func (f *fakeVCS) ResolveBranchHead(_ context.Context, _, _ string) (string, error) {
	return testCommit, nil
}
func (f *fakeVCS) ChurnStats(_ context.Context, _ string) (map[string]*gitrepo.ChurnStat, error) {
	return nil, nil
}

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) EmbedWithProgress(_ context.Context, texts []string, onBatch func(done, total int)) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0, 0}
	}
	if onBatch != nil && len(texts) > 0 {
		onBatch(len(texts), len(texts))
	}
	return vectors, nil
}

type fakeIndex struct {
	ensured  bool
	upserted []vectorindex.Point
}

func (f *fakeIndex) EnsureCollection(_ context.Context) error { f.ensured = true; return nil }
func (f *fakeIndex) Upsert(_ context.Context, points []vectorindex.Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

type fakeBlobStore struct{ keys []string }

func (f *fakeBlobStore) Put(_ context.Context, key string, _ []byte) (string, error) {
	f.keys = append(f.keys, key)
	return "", nil
}
func (f *fakeBlobStore) Get(_ context.Context, _ string) ([]byte, error) { return nil, nil }
func (f *fakeBlobStore) Delete(_ context.Context, _ string) error        { return nil }

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	source := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n\nfunc helper() int {\n\treturn 1\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(source), 0o644))
	return dir
}

func TestExecuteEmbedsAndCompletes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// The cache goroutine interleaves with the track queries.
	mock.MatchExpectationsInOrder(false)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	analysisFacade := database.NewAnalysisFacadeWithDB(gormDB)
	stateService := state.NewService(analysisFacade, events.NewBus(), state.DefaultHeartbeatThrottle)
	store := &fakeBlobStore{}
	cache := contentcache.NewService(database.NewContentCacheFacadeWithDB(gormDB), store, chunker.NewScanner(0))

	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	exec := NewExecutor(stateService, &fakeVCS{dir: writeRepo(t)}, chunker.NewScanner(0),
		chunker.NewHeuristicChunker(0), embedder, index, cache, t.TempDir())

	analysis := &model.Analysis{
		ID:           "an-1",
		RepositoryID: "repo-1",
		CommitSHA:    testCommit,
		Metrics:      model.ExtType{"repo_url": "https://example.com/r.git"},
	}

	// Progress reports and the completion transition.
	statusRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "status", "embeddings_status", "semantic_cache_status", "ai_scan_status", "embeddings_progress"}).
			AddRow("an-1", constant.StatusPending, constant.StatusRunning, constant.StatusNone, constant.StatusNone, 1)
	}
	for i := 0; i < 4; i++ {
		mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).WillReturnRows(statusRows())
		mock.ExpectExec(`UPDATE "analyses" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	// Content cache: miss, create, list objects, one object insert +
	// status updates, tree summary write.
	mock.ExpectQuery(`SELECT .* FROM "repo_content_caches"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "repo_content_caches"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectQuery(`SELECT .* FROM "repo_content_objects"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "repo_content_objects"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec(`UPDATE "repo_content_objects" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "repo_content_caches" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, exec.Execute(context.Background(), analysis))

	assert.True(t, index.ensured)
	require.Len(t, index.upserted, 2)
	for _, point := range index.upserted {
		assert.Len(t, point.Vector, 4)
		assert.Equal(t, "repo-1", point.Payload.RepositoryID)
		assert.Equal(t, testCommit, point.Payload.CommitSHA)
		assert.NoError(t, point.Payload.Validate())
	}
	assert.Len(t, store.keys, 1)
	require.Len(t, embedder.calls, 1)
	assert.Len(t, embedder.calls[0], 2)
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 1, clampProgress(0))
	assert.Equal(t, 1, clampProgress(1))
	assert.Equal(t, 50, clampProgress(50))
	assert.Equal(t, 99, clampProgress(99))
	assert.Equal(t, 99, clampProgress(120))
}
