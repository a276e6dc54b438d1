package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vedsharma/apibench/internal/errors"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/model"
)

// fakeStore is an in-memory RequestStore with injectable failures
type fakeStore struct {
	mu       sync.Mutex
	requests map[string]*model.RequestDefinition
	runs     []model.RunRecord

	findErr     error
	updateErr   error
	appendErrs  []error // consumed one per AppendRun call
	deleteAfter bool    // drop the request once it has been loaded
}

func newFakeStore(defs ...*model.RequestDefinition) *fakeStore {
	s := &fakeStore{requests: make(map[string]*model.RequestDefinition)}
	for _, def := range defs {
		s.requests[def.ID] = def
	}
	return s
}

func (s *fakeStore) FindRequest(_ context.Context, id string) (*model.RequestDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	def, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	if s.deleteAfter {
		delete(s.requests, id)
	}
	copied := *def
	return &copied, nil
}

func (s *fakeStore) UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.RequestDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	def, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFoundf("Request with id %s not found", id)
	}
	if update.Response != nil {
		def.Response = *update.Response
	}
	def.UpdatedAt = def.UpdatedAt.Add(time.Second)
	copied := *def
	return &copied, nil
}

func (s *fakeStore) AppendRun(ctx context.Context, requestID string, fields model.RunFields) (*model.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	run := model.RunRecord{
		ID:         fmt.Sprintf("run-%d", len(s.runs)+1),
		RequestID:  requestID,
		Status:     fields.Status,
		StatusText: fields.StatusText,
		Headers:    fields.Headers,
		Body:       fields.Body,
		DurationMs: fields.DurationMs,
		CreatedAt:  time.Now().UTC(),
	}
	s.runs = append(s.runs, run)
	return &run, nil
}

func (s *fakeStore) response(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if def, ok := s.requests[id]; ok {
		return def.Response
	}
	return ""
}

// fakeDispatcher returns a canned outcome and remembers what it was asked.
// cancel, when set, is called mid-dispatch.
type fakeDispatcher struct {
	outcome apihttp.Outcome
	calls   []apihttp.Request
	cancel  context.CancelFunc
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req apihttp.Request) apihttp.Outcome {
	d.calls = append(d.calls, req)
	if d.cancel != nil {
		d.cancel()
	}
	return d.outcome
}

type fakeAliases map[string]string

func (a fakeAliases) GetAlias(_ context.Context, name string) (string, bool, error) {
	url, ok := a[name]
	return url, ok, nil
}

func testDefinition() *model.RequestDefinition {
	return &model.RequestDefinition{
		ID:         "req-1",
		Name:       "List users",
		Method:     model.MethodGet,
		URL:        "https://api.example.com/users",
		Headers:    `[{"key":"Accept","value":"application/json","enabled":true},{"key":"X-Off","value":"1","enabled":false}]`,
		Parameters: `[{"key":"page","value":"2"}]`,
		Response:   "stale",
	}
}

func okOutcome() *apihttp.Success {
	return &apihttp.Success{
		Status:     200,
		StatusText: "OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Data:       apihttp.NewPayload([]byte(`{"ok":true}`)),
		DurationMs: 120,
		SizeBytes:  11,
	}
}

func transportFailure(msg string) *apihttp.Failure {
	return &apihttp.Failure{
		ErrorMessage: msg,
		DurationMs:   7,
		Err:          errors.Mark(errors.New(msg), errors.ErrTransport),
	}
}

func newTestOrchestrator(t *testing.T, store *fakeStore, d *fakeDispatcher, opts ...Option) *Orchestrator {
	return NewOrchestrator(store, d, zaptest.NewLogger(t).Sugar(), opts...)
}

func TestRunSuccessRecordsAndReconciles(t *testing.T) {
	store := newFakeStore(testDefinition())
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	succeeded, ok := result.(*Succeeded)
	require.True(t, ok, "expected success, got %#v", result)
	assert.True(t, result.OK())
	require.Len(t, store.runs, 1)

	run := succeeded.Run
	assert.Equal(t, 200, run.Status)
	assert.Equal(t, "OK", run.StatusLabel())
	assert.Equal(t, `{"ok":true}`, run.Body)
	assert.Equal(t, `{"Content-Type":"application/json"}`, run.Headers)
	assert.Equal(t, int64(120), run.DurationMs)
	assert.Equal(t, `{"ok":true}`, store.response("req-1"))

	require.Len(t, d.calls, 1)
	assert.Equal(t, apihttp.Request{
		Method:  "GET",
		URL:     "https://api.example.com/users",
		Headers: map[string]string{"Accept": "application/json"},
		Query:   map[string]string{"page": "2"},
	}, d.calls[0])
}

func TestRunErrorStatusIsStillSuccess(t *testing.T) {
	store := newFakeStore(testDefinition())
	d := &fakeDispatcher{outcome: &apihttp.Success{
		Status:     404,
		StatusText: "Not Found",
		Data:       apihttp.NewPayload(nil),
	}}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	require.True(t, result.OK())
	run := result.RunRecord()
	assert.Equal(t, 404, run.Status)
	assert.Equal(t, "", run.Body)
	assert.Equal(t, "", run.Headers)
	assert.Equal(t, "", store.response("req-1"))
}

func TestRunTransportFailureRecordsStatusZero(t *testing.T) {
	store := newFakeStore(testDefinition())
	d := &fakeDispatcher{outcome: transportFailure("ENOTFOUND")}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "ENOTFOUND", failed.Error)
	assert.True(t, errors.Is(failed.Err, errors.ErrTransport))
	require.NotNil(t, failed.Run)
	assert.Equal(t, 0, failed.Run.Status)
	assert.Equal(t, FailedStatusText, failed.Run.StatusLabel())
	assert.Equal(t, "ENOTFOUND", failed.Run.Body)
	assert.Equal(t, "", failed.Run.Headers)
	assert.Equal(t, int64(7), failed.Run.DurationMs)

	// A failed dispatch never touches the cached response
	assert.Equal(t, "stale", store.response("req-1"))
}

func TestRunCancelledDuringDispatchIsStillRecorded(t *testing.T) {
	store := newFakeStore(testDefinition())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &fakeDispatcher{outcome: transportFailure("context canceled"), cancel: cancel}

	result := newTestOrchestrator(t, store, d).Run(ctx, "req-1")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "context canceled", failed.Error)
	require.NotNil(t, failed.Run)
	assert.Equal(t, 0, failed.Run.Status)
	assert.Len(t, store.runs, 1)
}

func TestRunCancelledAfterSuccessStillReconciles(t *testing.T) {
	store := newFakeStore(testDefinition())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &fakeDispatcher{outcome: okOutcome(), cancel: cancel}

	result := newTestOrchestrator(t, store, d).Run(ctx, "req-1")

	require.True(t, result.OK())
	assert.Len(t, store.runs, 1)
	assert.Equal(t, `{"ok":true}`, store.response("req-1"))
}

func TestRunMissingRequestCreatesNoRun(t *testing.T) {
	store := newFakeStore()
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "ghost")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "Request with id ghost not found", failed.Error)
	assert.True(t, errors.IsNotFound(failed.Err))
	assert.Nil(t, failed.Run)
	assert.Empty(t, store.runs)
	assert.Empty(t, d.calls)
}

func TestRunLoadErrorCreatesNoRun(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.findErr = errors.New("database is locked")
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	assert.False(t, result.OK())
	assert.Nil(t, result.RunRecord())
	assert.Empty(t, store.runs)
	assert.Empty(t, d.calls)
}

func TestRunRecordFailureFallsBackToFailedRun(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.appendErrs = []error{errors.New("disk full")}
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "record run: disk full", failed.Error)
	assert.True(t, errors.Is(failed.Err, errors.ErrPersistence))
	require.NotNil(t, failed.Run)
	assert.Equal(t, 0, failed.Run.Status)
	assert.Equal(t, FailedStatusText, failed.Run.StatusLabel())
	assert.Equal(t, "record run: disk full", failed.Run.Body)
	assert.Len(t, store.runs, 1)

	// Reconcile is skipped once recording failed
	assert.Equal(t, "stale", store.response("req-1"))
}

func TestRunRecordAndFallbackFailureCombinesMessages(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.appendErrs = []error{errors.New("disk full"), errors.New("still full")}
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "Request failed record run: disk full. DB save failed record failed run: still full", failed.Error)
	assert.Nil(t, failed.Run)
	assert.Empty(t, store.runs)
	assert.True(t, errors.Is(failed.Err, errors.ErrPersistence))
}

func TestRunTransportAndRecordFailureKeepsDispatchError(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.appendErrs = []error{errors.New("disk full")}
	d := &fakeDispatcher{outcome: transportFailure("connection refused")}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	failed, ok := result.(*Failed)
	require.True(t, ok)
	assert.Equal(t, "Request failed connection refused. DB save failed record run: disk full", failed.Error)
	require.NotNil(t, failed.Run)
	assert.Equal(t, "connection refused", failed.Run.Body)
	assert.True(t, errors.Is(failed.Err, errors.ErrTransport))
}

func TestRunReconcileFailureStillSucceeds(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.updateErr = errors.New("readonly database")
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	require.True(t, result.OK())
	assert.Len(t, store.runs, 1)
}

func TestRunRecordsEvenWhenRequestDeletedMidRun(t *testing.T) {
	store := newFakeStore(testDefinition())
	store.deleteAfter = true
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	// The run is stored; only the cache update finds nothing to update
	assert.True(t, result.OK())
	require.Len(t, store.runs, 1)
	assert.Equal(t, "req-1", store.runs[0].RequestID)
}

func TestRunExactlyOneRecordPerAttempt(t *testing.T) {
	outcomes := []apihttp.Outcome{
		okOutcome(),
		&apihttp.Success{Status: 500, StatusText: "Internal Server Error", Data: apihttp.TextPayload("boom")},
		transportFailure("timeout"),
	}
	for _, outcome := range outcomes {
		store := newFakeStore(testDefinition())
		newTestOrchestrator(t, store, &fakeDispatcher{outcome: outcome}).Run(context.Background(), "req-1")
		require.Len(t, store.runs, 1)
		assert.GreaterOrEqual(t, store.runs[0].DurationMs, int64(0))
	}
}

func TestRunPublishesToSink(t *testing.T) {
	store := newFakeStore(testDefinition())
	var published []Result
	sink := SinkFunc(func(r Result) { published = append(published, r) })

	o := newTestOrchestrator(t, store, &fakeDispatcher{outcome: okOutcome()}, WithSink(sink))
	result := o.Run(context.Background(), "req-1")
	o.Run(context.Background(), "missing")

	require.Len(t, published, 2)
	assert.Same(t, result, published[0])
	assert.False(t, published[1].OK())
}

func TestRunResolvesAliases(t *testing.T) {
	def := testDefinition()
	def.URL = "api/users"
	store := newFakeStore(def)
	d := &fakeDispatcher{outcome: okOutcome()}

	o := newTestOrchestrator(t, store, d, WithAliases(fakeAliases{"api": "https://api.example.com/"}))
	o.Run(context.Background(), "req-1")

	require.Len(t, d.calls, 1)
	assert.Equal(t, "https://api.example.com/users", d.calls[0].URL)
}

func TestRunMalformedHeadersAreDropped(t *testing.T) {
	def := testDefinition()
	def.Headers = "{not json"
	store := newFakeStore(def)
	d := &fakeDispatcher{outcome: okOutcome()}

	result := newTestOrchestrator(t, store, d).Run(context.Background(), "req-1")

	assert.True(t, result.OK())
	assert.Empty(t, d.calls[0].Headers)
}

func TestResultWireShapes(t *testing.T) {
	run := &model.RunRecord{
		ID:         "run-1",
		RequestID:  "req-1",
		Status:     200,
		StatusText: model.StringPtr("OK"),
		Body:       `{"ok":true}`,
		DurationMs: 120,
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(&Succeeded{Run: run, Outcome: okOutcome()})
	require.NoError(t, err)
	var succeeded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &succeeded))
	assert.Equal(t, true, succeeded["success"])
	assert.Contains(t, succeeded, "requestRun")
	assert.Equal(t, map[string]interface{}{"ok": true}, succeeded["result"].(map[string]interface{})["data"])

	data, err = json.Marshal(&Failed{Error: "Request with id x not found", Err: errors.New("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Request with id x not found"}`, string(data))

	data, err = json.Marshal(&Failed{Error: "ENOTFOUND", Run: run})
	require.NoError(t, err)
	var failed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &failed))
	assert.Equal(t, "run-1", failed["requestRun"].(map[string]interface{})["id"])
}

func TestResolveAlias(t *testing.T) {
	aliases := fakeAliases{"api": "https://api.example.com/v1/"}
	ctx := context.Background()

	assert.Equal(t, "https://api.example.com/v1/users", ResolveAlias(ctx, aliases, "api/users"))
	assert.Equal(t, "https://api.example.com/v1", ResolveAlias(ctx, aliases, "api"))
	assert.Equal(t, "https://other.example.com/x", ResolveAlias(ctx, aliases, "https://other.example.com/x"))
	assert.Equal(t, "unknown/path", ResolveAlias(ctx, aliases, "unknown/path"))
	assert.Equal(t, "api/users", ResolveAlias(ctx, nil, "api/users"))
}
