package execution

import (
	"context"

	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/errors"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
)

// RequestUpdater writes the mutable fields of a request
type RequestUpdater interface {
	UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.RequestDefinition, error)
}

// Reconciler caches the last successful response on the request
type Reconciler struct {
	store RequestUpdater
	log   *zap.SugaredLogger
}

// NewReconciler creates a Reconciler
func NewReconciler(store RequestUpdater, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{store: store, log: logger.Component(log, "reconciler")}
}

// Reconcile stores success's payload as the request's cached response.
// The store refreshes the last-modified timestamp.
func (r *Reconciler) Reconcile(ctx context.Context, requestID string, success *apihttp.Success) error {
	if success == nil {
		return errors.Invalidf("nothing to reconcile for request %s", requestID)
	}

	response := success.Data.String()
	if _, err := r.store.UpdateRequest(ctx, requestID, model.RequestUpdate{Response: &response}); err != nil {
		return errors.Mark(errors.Wrap(err, "cache last response"), errors.ErrPersistence)
	}
	r.log.Debugw("Cached last response", logger.FieldRequestID, requestID, logger.FieldSize, len(response))
	return nil
}
