package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
	"github.com/vedsharma/apibench/internal/playground"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps an error to its HTTP status
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsInvalidRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Errorw("Request failed", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode body"), errors.ErrInvalidRequest)
	}
	return nil
}

// decodeOptionalBody is decodeBody where an empty body is allowed
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return errors.Mark(errors.Wrap(err, "decode body"), errors.ErrInvalidRequest)
	}
	return nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// =============================================================================
// Workspaces and collections
// =============================================================================

func (h *Handlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	// The personal workspace always exists for the current user
	if _, err := h.store.InitializeWorkspace(r.Context(), h.owner); err != nil {
		h.fail(w, err)
		return
	}
	workspaces, err := h.store.ListWorkspaces(r.Context(), h.owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (h *Handlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	ws, err := h.store.CreateWorkspace(r.Context(), h.owner, body.Name, body.Description)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (h *Handlers) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.store.ListCollections(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

func (h *Handlers) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}
	c, err := h.store.CreateCollection(r.Context(), pathID(r), body.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// =============================================================================
// Saved requests and runs
// =============================================================================

func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.ListRequests(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handlers) AddRequest(w http.ResponseWriter, r *http.Request) {
	var in model.RequestInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, err)
		return
	}
	def, err := h.store.AddRequestToCollection(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *Handlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	def, err := h.store.FindRequest(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if def == nil {
		h.fail(w, errors.NotFoundf("Request with id %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handlers) SaveRequest(w http.ResponseWriter, r *http.Request) {
	var in model.RequestInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, err)
		return
	}
	def, err := h.store.SaveRequest(r.Context(), pathID(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// RunRequest executes a saved request. Both result variants are 200: the
// body's "success" field tells them apart.
func (h *Handlers) RunRequest(w http.ResponseWriter, r *http.Request) {
	// A client disconnect must not abort a run half way through recording
	ctx := context.WithoutCancel(r.Context())
	writeJSON(w, http.StatusOK, h.runner.Run(ctx, pathID(r)))
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := h.store.ListRuns(r.Context(), pathID(r), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// =============================================================================
// Playground
// =============================================================================

type tabsResponse struct {
	Tabs        []playground.Tab `json:"tabs"`
	ActiveTabID string           `json:"activeTabId"`
}

func (h *Handlers) ListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tabsResponse{Tabs: h.session.Tabs(), ActiveTabID: h.session.ActiveTabID()})
}

// OpenTab opens a blank tab, or the tab of a saved request when the body
// names one
func (h *Handlers) OpenTab(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID string `json:"requestId"`
	}
	if err := decodeOptionalBody(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}

	if body.RequestID == "" {
		writeJSON(w, http.StatusCreated, h.session.AddTab())
		return
	}

	def, err := h.store.FindRequest(r.Context(), body.RequestID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if def == nil {
		h.fail(w, errors.NotFoundf("Request with id %s not found", body.RequestID))
		return
	}
	writeJSON(w, http.StatusOK, h.session.OpenRequestTab(*def))
}

func (h *Handlers) UpdateTab(w http.ResponseWriter, r *http.Request) {
	var patch playground.TabPatch
	if err := decodeBody(w, r, &patch); err != nil {
		h.fail(w, err)
		return
	}
	tab, err := h.session.UpdateTab(pathID(r), patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

func (h *Handlers) CloseTab(w http.ResponseWriter, r *http.Request) {
	if !h.session.CloseTab(pathID(r)) {
		h.fail(w, errors.NotFoundf("tab %s not found", pathID(r)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ActivateTab(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SetActiveTab(pathID(r)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveTab writes the tab to its saved request, or into the collection named
// in the body when the tab has never been saved
func (h *Handlers) SaveTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.session.Tab(pathID(r))
	if !ok {
		h.fail(w, errors.NotFoundf("tab %s not found", pathID(r)))
		return
	}

	var body struct {
		CollectionID string `json:"collectionId"`
		Name         string `json:"name"`
	}
	if err := decodeOptionalBody(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}

	in := model.RequestInput{
		Name:       tab.Title,
		Method:     model.Method(tab.Method),
		URL:        tab.URL,
		Body:       tab.Body,
		Headers:    tab.Headers,
		Parameters: tab.Parameters,
	}
	if body.Name != "" {
		in.Name = body.Name
	}

	var (
		def *model.RequestDefinition
		err error
	)
	switch {
	case tab.RequestID != "":
		def, err = h.store.SaveRequest(r.Context(), tab.RequestID, in)
	case body.CollectionID != "":
		def, err = h.store.AddRequestToCollection(r.Context(), body.CollectionID, in)
	default:
		err = errors.Invalidf("collectionId is required to save a new request")
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	saved, err := h.session.UpdateTabFromSavedRequest(tab.ID, *def)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// SendTab runs the saved request behind a tab
func (h *Handlers) SendTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.session.Tab(pathID(r))
	if !ok {
		h.fail(w, errors.NotFoundf("tab %s not found", pathID(r)))
		return
	}
	if tab.RequestID == "" {
		h.fail(w, errors.Invalidf("save the request to a collection before sending"))
		return
	}

	h.session.FlushAutosave(tab.RequestID)
	ctx := context.WithoutCancel(r.Context())
	writeJSON(w, http.StatusOK, h.runner.Run(ctx, tab.RequestID))
}

func (h *Handlers) GetResponse(w http.ResponseWriter, r *http.Request) {
	res := h.session.Response()
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
