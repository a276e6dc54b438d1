package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vedsharma/apibench/internal/execution"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/model"
	"github.com/vedsharma/apibench/internal/playground"
	"github.com/vedsharma/apibench/internal/storage"
)

type testAPI struct {
	handler http.Handler
	store   *storage.SQLiteStorage
	session *playground.Session
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	store, err := storage.Open(filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	session := playground.NewSession(log, playground.WithAutosave(store, 0))
	t.Cleanup(session.Close)

	client := apihttp.NewClient(apihttp.Options{}, log)
	orchestrator := execution.NewOrchestrator(store, client, log,
		execution.WithAliases(store),
		execution.WithSink(session),
	)

	return &testAPI{
		handler: NewHandlers(store, orchestrator, session, "tester", log).Router(),
		store:   store,
		session: session,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// seed creates a workspace, a collection and one request pointing at url
func (a *testAPI) seed(t *testing.T, url string) (collectionID, requestID string) {
	t.Helper()
	ctx := context.Background()
	ws, err := a.store.InitializeWorkspace(ctx, "tester")
	require.NoError(t, err)
	c, err := a.store.CreateCollection(ctx, ws.ID, "Smoke")
	require.NoError(t, err)
	def, err := a.store.AddRequestToCollection(ctx, c.ID, model.RequestInput{Name: "ping", Method: "GET", URL: url})
	require.NoError(t, err)
	return c.ID, def.ID
}

func TestListWorkspacesCreatesPersonalWorkspace(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/workspaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var workspaces []model.Workspace
	decode(t, rec, &workspaces)
	require.Len(t, workspaces, 1)
	assert.Equal(t, storage.PersonalWorkspaceName, workspaces[0].Name)
	assert.Equal(t, "tester", workspaces[0].Owner)
}

func TestCreateCollectionAndRequest(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/workspaces", map[string]string{"name": "Team"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws model.Workspace
	decode(t, rec, &ws)

	rec = a.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/collections", map[string]string{"name": "Users"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c model.Collection
	decode(t, rec, &c)

	rec = a.do(t, http.MethodPost, "/collections/"+c.ID+"/requests", model.RequestInput{Name: "list", Method: "GET", URL: "http://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/collections/"+c.ID+"/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var requests []model.RequestDefinition
	decode(t, rec, &requests)
	require.Len(t, requests, 1)
	assert.Equal(t, "list", requests[0].Name)
}

func TestErrorStatuses(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/requests/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/collections/missing/requests",
		model.RequestInput{Name: "x", Method: "GET"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/workspaces", map[string]string{"name": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/requests/x/runs?limit=abc", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, a.do(t, http.MethodDelete, "/workspaces", nil).Code)
}

func TestRunRequestReturnsWireShape(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer target.Close()

	a := newTestAPI(t)
	_, requestID := a.seed(t, target.URL)

	rec := a.do(t, http.MethodPost, "/requests/"+requestID+"/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success    bool            `json:"success"`
		RequestRun model.RunRecord `json:"requestRun"`
		Result     struct {
			Status int             `json:"status"`
			Data   json.RawMessage `json:"data"`
		} `json:"result"`
	}
	decode(t, rec, &body)
	assert.True(t, body.Success)
	assert.Equal(t, 200, body.RequestRun.Status)
	assert.Equal(t, 200, body.Result.Status)
	assert.JSONEq(t, `{"ok":true}`, string(body.Result.Data))

	rec = a.do(t, http.MethodGet, "/requests/"+requestID+"/runs?limit=5", nil)
	var runs []model.RunRecord
	decode(t, rec, &runs)
	assert.Len(t, runs, 1)

	// The session received the same result
	rec = a.do(t, http.MethodGet, "/response", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestRunMissingRequestIsFailureWithStatus200(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/requests/ghost/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Request with id ghost not found"}`, rec.Body.String())
}

func TestGetResponseEmpty(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodGet, "/response", nil).Code)
}

func TestTabLifecycle(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer target.Close()

	a := newTestAPI(t)
	collectionID, requestID := a.seed(t, target.URL)

	// Blank tab
	rec := a.do(t, http.MethodPost, "/tabs", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var blank playground.Tab
	decode(t, rec, &blank)

	// Sending an unsaved tab is refused
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/tabs/"+blank.ID+"/send", nil).Code)

	// Edit and save it into the collection
	rec = a.do(t, http.MethodPatch, "/tabs/"+blank.ID, playground.TabPatch{URL: model.StringPtr(target.URL + "/new")})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/tabs/"+blank.ID+"/save", map[string]string{"collectionId": collectionID, "name": "new one"})
	require.Equal(t, http.StatusOK, rec.Code)
	var saved playground.Tab
	decode(t, rec, &saved)
	assert.NotEqual(t, blank.ID, saved.ID)
	assert.Equal(t, saved.ID, saved.RequestID)
	assert.False(t, saved.UnsavedChanges)

	// Opening a saved request twice reuses its tab
	rec = a.do(t, http.MethodPost, "/tabs", map[string]string{"requestId": requestID})
	require.Equal(t, http.StatusOK, rec.Code)
	var opened playground.Tab
	decode(t, rec, &opened)
	rec = a.do(t, http.MethodPost, "/tabs", map[string]string{"requestId": requestID})
	var reopened playground.Tab
	decode(t, rec, &reopened)
	assert.Equal(t, opened.ID, reopened.ID)

	// Send it
	rec = a.do(t, http.MethodPost, "/tabs/"+opened.ID+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":418`)

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, "/tabs/"+saved.ID+"/activate", nil).Code)
	rec = a.do(t, http.MethodGet, "/tabs", nil)
	var tabs tabsResponse
	decode(t, rec, &tabs)
	assert.Len(t, tabs.Tabs, 2)
	assert.Equal(t, saved.ID, tabs.ActiveTabID)

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/tabs/"+saved.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/tabs/"+saved.ID, nil).Code)
}

func TestSendFlushesHeaderAutosave(t *testing.T) {
	var gotHeader string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Trace")
	}))
	defer target.Close()

	a := newTestAPI(t)
	_, requestID := a.seed(t, target.URL)

	rec := a.do(t, http.MethodPost, "/tabs", map[string]string{"requestId": requestID})
	var tab playground.Tab
	decode(t, rec, &tab)

	rec = a.do(t, http.MethodPatch, "/tabs/"+tab.ID, playground.TabPatch{
		Headers: model.StringPtr(`[{"key":"X-Trace","value":"abc"}]`),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/tabs/"+tab.ID+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", gotHeader)
}
