package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/domain/scheduler"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

func newSearchAPI(index Index) *echo.Echo {
	e, _ := newScheduledSearchAPI(index, "")
	return e
}

// newScheduledSearchAPI registers the periodic reindex when schedule is set.
func newScheduledSearchAPI(index Index, schedule string) (*echo.Echo, *scheduler.Scheduler) {
	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(quietLogger())
	cfg := &config.Config{
		KOS:    config.KOSConfig{AuthToken: "token"},
		Search: config.SearchConfig{ReindexSchedule: schedule},
	}
	r := newReindexer(index, staticLister{concepts: []kos.Concept{{IRI: "http://example.org/c/1"}}}, 0, quietLogger())
	sched := scheduler.NewScheduler(quietLogger())
	if err := RegisterReindexTask(sched, index, r, cfg); err != nil {
		panic(err)
	}
	RegisterRoutes(e, NewHandler(index, r, sched), kos.NewWriteGuard(cfg))
	return e, sched
}

func serve(e *echo.Echo, method, target string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(kos.AuthTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Search(t *testing.T) {
	index := &memoryIndex{results: []Result{{IRI: "http://example.org/c/1", PrefLabel: "Steel"}}}
	e := newSearchAPI(index)

	rec := serve(e, http.MethodGet, "/v1/concepts/search?query=steel&language=fr&semantic=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got []Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, index.results, got)
	assert.Equal(t, Query{Text: "steel", Language: "fr", Semantic: true}, index.queries[0])

	rec = serve(e, http.MethodGet, "/v1/concepts/suggest?query=ste", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Query{Text: "ste", Language: "en", Prefix: true}, index.queries[1])
}

func TestHandler_SearchBadRequests(t *testing.T) {
	e := newSearchAPI(&memoryIndex{})

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/v1/concepts/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/v1/concepts/search?query=%20", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/v1/concepts/search?query=a&semantic=sure", "").Code)
}

func TestHandler_NotConfigured(t *testing.T) {
	e := newSearchAPI(Disabled{})

	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/v1/concepts/search?query=steel", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodPost, "/v1/search/reindex", "token").Code)
}

func TestHandler_Reindex(t *testing.T) {
	index := &memoryIndex{}
	e := newSearchAPI(index)

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodPost, "/v1/search/reindex", "").Code)

	rec := serve(e, http.MethodPost, "/v1/search/reindex", "token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, []string{"http://example.org/c/1"}, index.indexed)
}

func TestHandler_ReindexThroughScheduler(t *testing.T) {
	index := &memoryIndex{}
	e, sched := newScheduledSearchAPI(index, "0 0 3 * * *")
	assert.Equal(t, []string{reindexTaskName}, sched.ListTasks())

	rec := serve(e, http.MethodPost, "/v1/search/reindex", "token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, index.resets)
}

func TestHandler_ReindexAlreadyRunning(t *testing.T) {
	index := &blockingIndex{started: make(chan struct{}), release: make(chan struct{})}
	e, _ := newScheduledSearchAPI(index, "0 0 3 * * *")

	done := make(chan int, 1)
	go func() { done <- serve(e, http.MethodPost, "/v1/search/reindex", "token").Code }()
	<-index.started

	rec := serve(e, http.MethodPost, "/v1/search/reindex", "token")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "reindex_in_progress")

	close(index.release)
	assert.Equal(t, http.StatusOK, <-done)
}
