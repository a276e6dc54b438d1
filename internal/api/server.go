// Package api serves the workbench over JSON HTTP: workspaces, collections,
// saved requests, run history and the playground session.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/execution"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
	"github.com/vedsharma/apibench/internal/playground"
)

// Store is the persistence the API needs
type Store interface {
	InitializeWorkspace(ctx context.Context, owner string) (*model.Workspace, error)
	CreateWorkspace(ctx context.Context, owner, name, description string) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context, owner string) ([]model.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)

	CreateCollection(ctx context.Context, workspaceID, name string) (*model.Collection, error)
	ListCollections(ctx context.Context, workspaceID string) ([]model.Collection, error)

	FindRequest(ctx context.Context, id string) (*model.RequestDefinition, error)
	AddRequestToCollection(ctx context.Context, collectionID string, in model.RequestInput) (*model.RequestDefinition, error)
	SaveRequest(ctx context.Context, id string, in model.RequestInput) (*model.RequestDefinition, error)
	ListRequests(ctx context.Context, collectionID string) ([]model.RequestDefinition, error)

	ListRuns(ctx context.Context, requestID string, limit int) ([]model.RunRecord, error)
}

// Runner executes saved requests
type Runner interface {
	Run(ctx context.Context, requestID string) execution.Result
}

// Handlers holds the HTTP handlers and their collaborators
type Handlers struct {
	store   Store
	runner  Runner
	session *playground.Session
	owner   string
	log     *zap.SugaredLogger
}

// NewHandlers creates the handlers. owner is the current user.
func NewHandlers(store Store, runner Runner, session *playground.Session, owner string, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		store:   store,
		runner:  runner,
		session: session,
		owner:   owner,
		log:     logger.Component(log, "api"),
	}
}

// Router wires routes and middleware
func (h *Handlers) Router() http.Handler {
	r := mux.NewRouter()

	lm := &LoggingMiddleware{log: h.log}
	pm := &PanicMiddleware{log: h.log}
	r.Use(pm.Middleware, lm.Middleware)

	r.HandleFunc("/workspaces", h.ListWorkspaces).Methods(http.MethodGet)
	r.HandleFunc("/workspaces", h.CreateWorkspace).Methods(http.MethodPost)
	r.HandleFunc("/workspaces/{id}/collections", h.ListCollections).Methods(http.MethodGet)
	r.HandleFunc("/workspaces/{id}/collections", h.CreateCollection).Methods(http.MethodPost)

	r.HandleFunc("/collections/{id}/requests", h.ListRequests).Methods(http.MethodGet)
	r.HandleFunc("/collections/{id}/requests", h.AddRequest).Methods(http.MethodPost)

	r.HandleFunc("/requests/{id}", h.GetRequest).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", h.SaveRequest).Methods(http.MethodPut)
	r.HandleFunc("/requests/{id}/run", h.RunRequest).Methods(http.MethodPost)
	r.HandleFunc("/requests/{id}/runs", h.ListRuns).Methods(http.MethodGet)

	r.HandleFunc("/tabs", h.ListTabs).Methods(http.MethodGet)
	r.HandleFunc("/tabs", h.OpenTab).Methods(http.MethodPost)
	r.HandleFunc("/tabs/{id}", h.UpdateTab).Methods(http.MethodPatch)
	r.HandleFunc("/tabs/{id}", h.CloseTab).Methods(http.MethodDelete)
	r.HandleFunc("/tabs/{id}/activate", h.ActivateTab).Methods(http.MethodPost)
	r.HandleFunc("/tabs/{id}/save", h.SaveTab).Methods(http.MethodPost)
	r.HandleFunc("/tabs/{id}/send", h.SendTab).Methods(http.MethodPost)
	r.HandleFunc("/response", h.GetResponse).Methods(http.MethodGet)

	return r
}

// Server runs the API until its context is cancelled
type Server struct {
	srv *http.Server
	log *zap.SugaredLogger
}

// NewServer creates a server listening on addr
func NewServer(addr string, handler http.Handler, log *zap.SugaredLogger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.Component(log, "server"),
	}
}

// ListenAndServe blocks until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("API server listening", logger.FieldAddress, s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("API server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
