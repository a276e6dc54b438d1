package execution

import (
	"context"

	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/errors"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
)

// FailedStatusText is stored on runs that never got a response
const FailedStatusText = "Failed"

// RunAppender stores run history
type RunAppender interface {
	AppendRun(ctx context.Context, requestID string, fields model.RunFields) (*model.RunRecord, error)
}

// Recorder turns a dispatch outcome into a persisted RunRecord
type Recorder struct {
	store RunAppender
	log   *zap.SugaredLogger
}

// NewRecorder creates a Recorder
func NewRecorder(store RunAppender, log *zap.SugaredLogger) *Recorder {
	return &Recorder{store: store, log: logger.Component(log, "recorder")}
}

// Record appends one run for outcome. Storage errors are returned marked
// with ErrPersistence; the caller decides on the fallback.
func (r *Recorder) Record(ctx context.Context, requestID string, outcome apihttp.Outcome) (*model.RunRecord, error) {
	run, err := r.store.AppendRun(ctx, requestID, RunFieldsFor(outcome))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "record run"), errors.ErrPersistence)
	}
	r.log.Debugw("Run recorded",
		logger.FieldRequestID, requestID,
		logger.FieldRunID, run.ID,
		logger.FieldStatus, run.Status,
	)
	return run, nil
}

// RecordFailure appends the minimal status-0 run used when nothing better
// can be stored
func (r *Recorder) RecordFailure(ctx context.Context, requestID, message string, durationMs int64) (*model.RunRecord, error) {
	run, err := r.store.AppendRun(ctx, requestID, failedRunFields(message, durationMs))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "record failed run"), errors.ErrPersistence)
	}
	return run, nil
}

// RunFieldsFor maps a dispatch outcome to the columns of a run
func RunFieldsFor(outcome apihttp.Outcome) model.RunFields {
	switch o := outcome.(type) {
	case *apihttp.Success:
		var statusText *string
		if o.StatusText != "" {
			statusText = model.StringPtr(o.StatusText)
		}
		return model.RunFields{
			Status:     o.Status,
			StatusText: statusText,
			Headers:    model.EncodeHeaderMap(o.Headers),
			Body:       o.Data.String(),
			DurationMs: nonNegative(o.DurationMs),
		}
	case *apihttp.Failure:
		return failedRunFields(o.ErrorMessage, o.DurationMs)
	default:
		return failedRunFields("unknown dispatch outcome", 0)
	}
}

func failedRunFields(message string, durationMs int64) model.RunFields {
	return model.RunFields{
		Status:     0,
		StatusText: model.StringPtr(FailedStatusText),
		Headers:    "",
		Body:       message,
		DurationMs: nonNegative(durationMs),
	}
}

func nonNegative(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
