package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/logger"
)

const stackTraceBuffSize = 1024

// RequestIDHeader echoes the id the logging middleware assigned
const RequestIDHeader = "X-Request-Id"

// statusRecorder remembers the status code a handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware tags every request with a uuid and logs how long it took
type LoggingMiddleware struct {
	log *zap.SugaredLogger
}

func (lm *LoggingMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.NewString()
		log := lm.log.With(
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldTraceID, traceID,
		)
		log.Debug("new incoming request")

		w.Header().Set(RequestIDHeader, traceID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		log.Infow("request handled",
			logger.FieldStatus, rec.status,
			logger.FieldDurationMS, elapsed.Milliseconds(),
		)
	})
}

// PanicMiddleware turns a handler panic into a 500
type PanicMiddleware struct {
	log *zap.SugaredLogger
}

func (pm *PanicMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, stackTraceBuffSize)
				n := runtime.Stack(buf, false)
				for n == len(buf) {
					buf = make([]byte, len(buf)*2)
					n = runtime.Stack(buf, false)
				}
				pm.log.Errorw("panic recovered", "panic", rec, "stack", string(buf[:n]))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
