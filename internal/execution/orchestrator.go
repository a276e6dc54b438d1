// Package execution runs saved requests: it loads the definition, dispatches
// it once, records the attempt in run history and caches the response.
//
// Run never returns a Go error. Every failure, from a missing request to a
// broken database, is folded into a *Failed result so callers always get
// something to show.
package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/errors"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
)

// RequestStore is the storage the orchestrator needs
type RequestStore interface {
	FindRequest(ctx context.Context, id string) (*model.RequestDefinition, error)
	RequestUpdater
	RunAppender
}

// Dispatcher sends one request over the network
type Dispatcher interface {
	Dispatch(ctx context.Context, req apihttp.Request) apihttp.Outcome
}

// Orchestrator is the single entry point for executing a saved request
type Orchestrator struct {
	store      RequestStore
	dispatcher Dispatcher
	recorder   *Recorder
	reconciler *Reconciler
	aliases    AliasResolver
	sink       Sink
	log        *zap.SugaredLogger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithAliases expands alias URLs before dispatch
func WithAliases(aliases AliasResolver) Option {
	return func(o *Orchestrator) { o.aliases = aliases }
}

// WithSink publishes every result to sink
func WithSink(sink Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// NewOrchestrator wires the recorder and reconciler over store
func NewOrchestrator(store RequestStore, dispatcher Dispatcher, log *zap.SugaredLogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		recorder:   NewRecorder(store, log),
		reconciler: NewReconciler(store, log),
		log:        logger.Component(log, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the request with the given id: load, dispatch, record,
// and on success reconcile. Stages run strictly in that order.
func (o *Orchestrator) Run(ctx context.Context, requestID string) Result {
	result := o.run(ctx, requestID)

	log := o.log.With(logger.FieldRequestID, requestID)
	switch r := result.(type) {
	case *Succeeded:
		log.Infow("Run succeeded",
			logger.FieldRunID, r.Run.ID,
			logger.FieldStatus, r.Outcome.Status,
			logger.FieldDurationMS, r.Outcome.DurationMs,
		)
	case *Failed:
		log.Infow("Run failed", logger.FieldError, r.Error, "recorded", r.Run != nil)
	}

	if o.sink != nil {
		o.sink.Publish(result)
	}
	return result
}

func (o *Orchestrator) run(ctx context.Context, requestID string) Result {
	log := o.log.With(logger.FieldRequestID, requestID)

	def, err := o.store.FindRequest(ctx, requestID)
	if err != nil {
		log.Errorw("Loading request failed", logger.FieldError, err)
		return &Failed{Error: err.Error(), Err: err}
	}
	if def == nil {
		err := errors.NotFoundf("Request with id %s not found", requestID)
		return &Failed{Error: err.Error(), Err: err}
	}

	req := o.buildRequest(ctx, def)
	log.Debugw("Dispatching", logger.FieldMethod, req.Method, logger.FieldURL, req.URL)
	outcome := o.dispatcher.Dispatch(ctx, req)

	// A cancelled dispatch is still an attempt and must be recorded
	persistCtx := context.WithoutCancel(ctx)

	run, err := o.recorder.Record(persistCtx, requestID, outcome)
	if err != nil {
		log.Errorw("Recording run failed", logger.FieldError, err)
		return o.recordFallback(persistCtx, requestID, outcome, err)
	}

	switch out := outcome.(type) {
	case *apihttp.Success:
		if err := o.reconciler.Reconcile(persistCtx, requestID, out); err != nil {
			// Run history is authoritative; a stale cached response is tolerated.
			log.Warnw("Caching last response failed", logger.FieldError, err)
		}
		return &Succeeded{Run: run, Outcome: out}
	case *apihttp.Failure:
		return &Failed{Error: out.ErrorMessage, Err: out.Err, Run: run}
	default:
		err := errors.Newf("unexpected dispatch outcome %T", outcome)
		return &Failed{Error: err.Error(), Err: err, Run: run}
	}
}

// recordFallback makes a single attempt to store a status-0 run after the
// normal record failed. The returned message names both errors.
func (o *Orchestrator) recordFallback(ctx context.Context, requestID string, outcome apihttp.Outcome, recordErr error) Result {
	primary := recordErr
	message := recordErr.Error()
	if failure, ok := outcome.(*apihttp.Failure); ok {
		message = failure.ErrorMessage
		if failure.Err != nil {
			primary = errors.WithSecondaryError(failure.Err, recordErr)
		}
	}

	run, err := o.recorder.RecordFailure(ctx, requestID, message, outcome.Duration())
	if err != nil {
		o.log.Errorw("Fallback run record failed",
			logger.FieldRequestID, requestID,
			logger.FieldError, err,
		)
		return &Failed{
			Error: combinedMessage(message, err.Error()),
			Err:   errors.WithSecondaryError(primary, err),
		}
	}

	return &Failed{
		Error: combinedMessage(message, recordErr.Error()),
		Err:   primary,
		Run:   run,
	}
}

// combinedMessage keeps both the request error and the storage error
func combinedMessage(requestMsg, persistMsg string) string {
	if requestMsg == persistMsg {
		return requestMsg
	}
	return fmt.Sprintf("Request failed %s. DB save failed %s", requestMsg, persistMsg)
}

// buildRequest turns a saved definition into a dispatcher request. Header
// and parameter lists that cannot be decoded are sent empty.
func (o *Orchestrator) buildRequest(ctx context.Context, def *model.RequestDefinition) apihttp.Request {
	headers, err := model.DecodeKeyValues(def.Headers)
	if err != nil {
		o.log.Warnw("Ignoring malformed headers", logger.FieldRequestID, def.ID, logger.FieldError, err)
	}
	params, err := model.DecodeKeyValues(def.Parameters)
	if err != nil {
		o.log.Warnw("Ignoring malformed parameters", logger.FieldRequestID, def.ID, logger.FieldError, err)
	}

	return apihttp.Request{
		Method:  string(def.Method),
		URL:     ResolveAlias(ctx, o.aliases, def.URL),
		Headers: headers.Map(),
		Query:   params.Map(),
		Body:    def.Body,
	}
}
