package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodsearch/internal/catalog"
	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/jobs"
	"vodsearch/internal/search"
	"vodsearch/internal/status"
	"vodsearch/internal/store"
)

// fixedLister serves canned items per collection.
type fixedLister struct {
	items map[string][]catalog.Item
}

func (f *fixedLister) ListItems(ctx context.Context, collectionID string) ([]catalog.Item, error) {
	return f.items[collectionID], nil
}

// fixedFetcher serves canned transcripts.
type fixedFetcher struct {
	segments map[string][]catalog.Segment
}

func (f *fixedFetcher) FetchTranscript(ctx context.Context, itemID string) ([]catalog.Segment, error) {
	return f.segments[itemID], nil
}

type apiEnv struct {
	srv     *httptest.Server
	orch    *jobs.Orchestrator
	lister  *fixedLister
	fetcher *fixedFetcher
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	indexes, err := store.NewIndexManager("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexes.Close() })

	meta, err := store.NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	st := status.NewMemoryStore(0)
	lister := &fixedLister{items: map[string][]catalog.Item{}}
	fetcher := &fixedFetcher{segments: map[string][]catalog.Segment{}}

	worker := &jobs.Worker{
		Transcripts: fetcher,
		Indexes:     indexes,
		Meta:        meta,
		Retry: vserrors.RetryConfig{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
	orch := jobs.NewOrchestrator(jobs.Config{Workers: 2, PollInterval: 5 * time.Millisecond},
		lister, worker, st, meta, slog.Default())
	engine := search.NewEngine(search.Config{}, indexes, meta, nil)

	server := NewServer(orch, engine, indexes, meta, st, slog.Default())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &apiEnv{srv: srv, orch: orch, lister: lister, fetcher: fetcher}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

// indexCollection runs a job to completion through the API.
func (e *apiEnv) indexCollection(t *testing.T, collectionID string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/collections/"+collectionID+"/index",
		map[string]any{"title": "Test Collection"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(body, &started))
	require.NotEmpty(t, started.JobID)
	e.orch.Wait(started.JobID)
}

func TestAPI_IndexThenSearch(t *testing.T) {
	// Given: a collection at the catalog
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{
		{ID: "v1", Title: "brewing coffee at home", Channel: "drinks"},
		{ID: "v2", Title: "tea ceremony basics", Channel: "drinks"},
	}
	env.fetcher.segments["v1"] = []catalog.Segment{
		{Text: "grind the coffee beans finely", Start: 2, Duration: 4},
	}

	// When: indexing through the API
	env.indexCollection(t, "PL1")

	// Then: search finds the indexed item with highlights and segments
	resp, body := env.do(t, http.MethodGet,
		"/api/collections/PL1/search?q=coffee&search_in=title,transcript", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res searchResponse
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, uint64(1), res.Total)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "v1", res.Results[0].ID)
	assert.Contains(t, res.Results[0].HighlightedTitle, "<em>coffee</em>")
	require.Len(t, res.Results[0].MatchingSegments, 1)
	assert.InDelta(t, 2.0, res.Results[0].MatchingSegments[0].Start, 0.001)
}

func TestAPI_JobLifecycle(t *testing.T) {
	// Given: an indexed collection
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{{ID: "v1", Title: "solo video"}}

	resp, body := env.do(t, http.MethodPost, "/api/collections/PL1/index", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(body, &started))
	env.orch.Wait(started.JobID)

	// When: polling the job
	resp, body = env.do(t, http.MethodGet, "/api/jobs/"+started.JobID, nil)

	// Then: the read model reports completion
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view jobView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, 1, view.NewItems)
	assert.Equal(t, 1, view.IndexedItems)
}

func TestAPI_JobNotFound(t *testing.T) {
	env := newAPIEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, vserrors.ErrCodeJobNotFound, eb.Error.Code)
}

func TestAPI_CancelCompletedJob_Conflict(t *testing.T) {
	// Given: a completed job
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{{ID: "v1", Title: "x"}}

	_, body := env.do(t, http.MethodPost, "/api/collections/PL1/index", nil)
	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(body, &started))
	env.orch.Wait(started.JobID)

	// When: cancelling it
	resp, _ := env.do(t, http.MethodDelete, "/api/jobs/"+started.JobID, nil)

	// Then: conflict, the job is terminal
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Search_NoFieldSelected(t *testing.T) {
	// Given: an indexed collection
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{{ID: "v1", Title: "anything"}}
	env.indexCollection(t, "PL1")

	// When: searching without selecting a field
	resp, body := env.do(t, http.MethodGet, "/api/collections/PL1/search?q=anything", nil)

	// Then: 400 with the search payload shape carrying the error
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var res searchResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, vserrors.ErrCodeNoSearchField, res.Code)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Results)
}

func TestAPI_Search_UnknownCollection(t *testing.T) {
	env := newAPIEnv(t)
	resp, _ := env.do(t, http.MethodGet,
		"/api/collections/ghost/search?q=x&search_in=title", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CollectionsListAndDelete(t *testing.T) {
	// Given: two indexed collections
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{{ID: "v1", Title: "one"}}
	env.lister.items["PL2"] = []catalog.Item{{ID: "v2", Title: "two"}}
	env.indexCollection(t, "PL1")
	env.indexCollection(t, "PL2")

	// When: listing collections
	resp, body := env.do(t, http.MethodGet, "/api/collections", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Collections []store.CollectionMeta `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Collections, 2)

	// When: deleting one
	resp, _ = env.do(t, http.MethodDelete, "/api/collections/PL1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Then: it is gone from the listing and from search
	_, body = env.do(t, http.MethodGet, "/api/collections", nil)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Collections, 1)

	resp, _ = env.do(t, http.MethodGet,
		"/api/collections/PL1/search?q=one&search_in=title", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Channels(t *testing.T) {
	// Given: an indexed collection across two channels
	env := newAPIEnv(t)
	env.lister.items["PL1"] = []catalog.Item{
		{ID: "v1", Title: "one", Channel: "alpha"},
		{ID: "v2", Title: "two", Channel: "beta"},
	}
	env.indexCollection(t, "PL1")

	// When: listing its channels
	resp, body := env.do(t, http.MethodGet, "/api/collections/PL1/channels", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []string{"alpha", "beta"}, out.Channels)
}

func TestAPI_SearchPagination(t *testing.T) {
	// Given: five indexed items
	env := newAPIEnv(t)
	var items []catalog.Item
	for i := 1; i <= 5; i++ {
		items = append(items, catalog.Item{
			ID:    fmt.Sprintf("v%d", i),
			Title: fmt.Sprintf("lecture part %d", i),
		})
	}
	env.lister.items["PL1"] = items
	env.indexCollection(t, "PL1")

	// When: fetching page 2 with size 2
	resp, body := env.do(t, http.MethodGet,
		"/api/collections/PL1/search?q=lecture&search_in=title&page=2&size=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Then: a full page with the total reflecting all matches
	var res searchResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, uint64(5), res.Total)
	assert.Len(t, res.Results, 2)
}
