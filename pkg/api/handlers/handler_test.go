// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/api"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/api/handlers"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/dispatch"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/events"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/model/rest"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/state"
)

const testCommit = "cccccccccccccccccccccccccccccccccccccccc"

type fakeVCS struct{}

func (f *fakeVCS) CloneAtCommit(_ context.Context, _, _, _ string) (string, error) {
	return "", nil
}

func (f *fakeVCS) ResolveBranchHead(_ context.Context, _, _ string) (string, error) {
	return testCommit, nil
}

func (f *fakeVCS) ChurnStats(_ context.Context, _ string) (map[string]*gitrepo.ChurnStat, error) {
	return nil, nil
}

func newTestServer(t *testing.T, limit int) (*gin.Engine, sqlmock.Sqlmock) {
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

	analysisFacade := database.NewAnalysisFacadeWithDB(gormDB)
	stateService := state.NewService(analysisFacade, events.NewBus(), state.DefaultHeartbeatThrottle)
	dispatcher := dispatch.NewDispatcher(analysisFacade, stateService, &fakeVCS{}, 10*time.Minute)
	limiter := dispatch.NewRateLimiter(limit, time.Minute, true)

	handler := handlers.NewHandler(
		dispatcher, limiter, analysisFacade,
		database.NewIssueFacadeWithDB(gormDB),
		database.NewFindingFacadeWithDB(gormDB),
		events.NewBus(),
		10*time.Millisecond,
	)
	return api.NewEngine(&config.Config{}, handler), mock
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResp(t *testing.T, w *httptest.ResponseRecorder) rest.Response {
	t.Helper()
	var resp rest.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetAnalysisNotFound(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(t, engine, http.MethodGet, "/v1/analyses/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFullStatusDerivesAggregates(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	rows := sqlmock.NewRows([]string{
		"id", "status", "progress",
		"embeddings_status", "embeddings_progress",
		"semantic_cache_status", "semantic_cache_progress",
		"ai_scan_status", "ai_scan_progress",
	}).AddRow("an-1", constant.StatusCompleted, 100,
		constant.StatusRunning, 50,
		constant.StatusNone, 0,
		constant.StatusPending, 0)
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(rows)

	w := doJSON(t, engine, http.MethodGet, "/v1/analyses/an-1/full-status", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResp(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var fs state.FullStatus
	require.NoError(t, json.Unmarshal(data, &fs))

	assert.Equal(t, constant.StatusRunning, fs.OverallStage)
	assert.Equal(t, 50, fs.OverallProgress) // round(mean(100, 50, 0))
	assert.False(t, fs.IsComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// closeNotifyRecorder adds the http.CloseNotifier implementation that
// gin's c.Stream requires and httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamEventsPollsStoreForRemoteTransitions(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	cols := []string{"id", "status", "progress", "embeddings_status", "semantic_cache_status", "ai_scan_status"}

	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("an-1", constant.StatusRunning, 10, constant.StatusPending, constant.StatusNone, constant.StatusPending))
	// The first poll sees progress written by another process. The
	// second poll has no backing row, which ends the stream.
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("an-1", constant.StatusRunning, 80, constant.StatusPending, constant.StatusNone, constant.StatusPending))

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/an-1/events", nil)
	w := &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "event:snapshot")
	assert.Contains(t, body, "event:status")
	assert.Contains(t, body, `"progress":80`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnalysisRateLimited(t *testing.T) {
	engine, _ := newTestServer(t, 0)

	w := doJSON(t, engine, http.MethodPost, "/v1/analyses",
		`{"repository_id":"repo-1","commit_sha":"`+testCommit+`","trigger_type":"manual"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestCreateAnalysisRejectsBadBody(t *testing.T) {
	engine, _ := newTestServer(t, 100)

	w := doJSON(t, engine, http.MethodPost, "/v1/analyses", `{"trigger_type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAIScanNotReady(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	rows := sqlmock.NewRows([]string{"id", "status", "ai_scan_status"}).
		AddRow("an-1", constant.StatusCompleted, constant.StatusRunning)
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(rows)

	w := doJSON(t, engine, http.MethodGet, "/v1/analyses/an-1/ai-scan", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAIScanReturnsCachedDocument(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	doc := `{"schema_version": 1, "issues": []}`
	rows := sqlmock.NewRows([]string{"id", "ai_scan_status", "ai_scan_cache"}).
		AddRow("an-1", constant.StatusCompleted, []byte(doc))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(rows)

	w := doJSON(t, engine, http.MethodGet, "/v1/analyses/an-1/ai-scan", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResp(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIssuesWithFilters(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("an-1"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "issues"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "issues"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "analysis_id", "severity", "title"}).
			AddRow("is-1", "an-1", constant.SeverityHigh, "Hardcoded secret"))
	mock.ExpectQuery(`SELECT severity, COUNT\(\*\) as count FROM "issues"`).
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).
			AddRow(constant.SeverityHigh, 1))

	w := doJSON(t, engine, http.MethodGet, "/v1/analyses/an-1/issues?severity=high", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hardcoded secret")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnalysesByRepo(t *testing.T) {
	engine, mock := newTestServer(t, 100)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "analyses"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT .* FROM "analyses" WHERE repository_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "repository_id", "commit_sha", "status"}).
			AddRow("an-2", "repo-1", testCommit, constant.StatusRunning).
			AddRow("an-1", "repo-1", testCommit, constant.StatusCompleted))

	w := doJSON(t, engine, http.MethodGet, "/v1/repositories/repo-1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResp(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var list rest.ListData
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 2, list.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth(t *testing.T) {
	engine, _ := newTestServer(t, 100)
	w := doJSON(t, engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
