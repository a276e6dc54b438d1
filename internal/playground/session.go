// Package playground holds the editor state of one user: open tabs, the
// active tab and the last run result shown in the response viewer.
//
// A Session is passed explicitly to whoever needs it. All mutation goes
// through its mutex and readers get copies.
package playground

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/debounce"
	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/execution"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
)

const (
	untitled = "Untitled"

	// DefaultAutosaveDelay matches the editor's key/value debounce
	DefaultAutosaveDelay = 500 * time.Millisecond

	autosaveTimeout = 5 * time.Second
)

// Tab is one open request editor
type Tab struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Method         string `json:"method"`
	URL            string `json:"url"`
	Body           string `json:"body"`
	Headers        string `json:"headers"`
	Parameters     string `json:"parameters"`
	UnsavedChanges bool   `json:"unsavedChanges"`
	RequestID      string `json:"requestId,omitempty"`
	CollectionID   string `json:"collectionId,omitempty"`
}

// TabPatch is a partial tab edit; nil fields are left alone
type TabPatch struct {
	Title      *string `json:"title,omitempty"`
	Method     *string `json:"method,omitempty"`
	URL        *string `json:"url,omitempty"`
	Body       *string `json:"body,omitempty"`
	Headers    *string `json:"headers,omitempty"`
	Parameters *string `json:"parameters,omitempty"`
}

// Session is the playground state. The zero value is not usable; call NewSession.
type Session struct {
	mu       sync.Mutex
	tabs     []*Tab
	activeID string
	response execution.Result

	newID  func() string
	store  execution.RequestUpdater
	delay  time.Duration
	savers map[string]*debounce.Debouncer
	log    *zap.SugaredLogger
}

// Option configures a Session
type Option func(*Session)

// WithAutosave persists header and parameter edits of saved requests to
// store after delay without further edits
func WithAutosave(store execution.RequestUpdater, delay time.Duration) Option {
	return func(s *Session) {
		s.store = store
		if delay > 0 {
			s.delay = delay
		}
	}
}

// NewSession creates an empty session
func NewSession(log *zap.SugaredLogger, opts ...Option) *Session {
	s := &Session{
		newID:  uuid.NewString,
		delay:  DefaultAutosaveDelay,
		savers: make(map[string]*debounce.Debouncer),
		log:    logger.Component(log, "playground"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTab opens a blank GET tab and makes it active
func (s *Session) AddTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := &Tab{
		ID:             s.newID(),
		Title:          untitled,
		Method:         string(model.MethodGet),
		UnsavedChanges: true,
	}
	s.tabs = append(s.tabs, tab)
	s.activeID = tab.ID
	return *tab
}

// OpenRequestTab activates the tab already showing def, or opens a new one
func (s *Session) OpenRequestTab(def model.RequestDefinition) Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tabs {
		if t.RequestID == def.ID {
			s.activeID = t.ID
			return *t
		}
	}

	title := def.Name
	if title == "" {
		title = untitled
	}
	tab := &Tab{
		ID:           s.newID(),
		Title:        title,
		Method:       string(def.Method),
		URL:          def.URL,
		Body:         def.Body,
		Headers:      def.Headers,
		Parameters:   def.Parameters,
		RequestID:    def.ID,
		CollectionID: def.CollectionID,
	}
	s.tabs = append(s.tabs, tab)
	s.activeID = tab.ID
	s.seedAutosave(def)
	return *tab
}

// CloseTab removes a tab. Closing the active tab activates the first
// remaining one.
func (s *Session) CloseTab(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.tabs) > 0 {
			s.activeID = s.tabs[0].ID
		}
	}
	return true
}

// SetActiveTab makes id the active tab
func (s *Session) SetActiveTab(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return errors.NotFoundf("tab %s not found", id)
	}
	s.activeID = id
	return nil
}

// UpdateTab applies patch and marks the tab unsaved. Header and parameter
// edits of a saved request are autosaved when autosave is enabled.
func (s *Session) UpdateTab(id string, patch TabPatch) (Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Tab{}, errors.NotFoundf("tab %s not found", id)
	}
	if patch.Method != nil {
		if _, err := model.ParseMethod(*patch.Method); err != nil {
			return Tab{}, err
		}
	}

	t := s.tabs[idx]
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&t.Title, patch.Title)
	apply(&t.URL, patch.URL)
	apply(&t.Body, patch.Body)
	if patch.Method != nil {
		m, _ := model.ParseMethod(*patch.Method)
		t.Method = string(m)
	}
	if patch.Headers != nil {
		t.Headers = normalizeKeyValues(*patch.Headers)
		s.autosave(t.RequestID, "headers", t.Headers)
	}
	if patch.Parameters != nil {
		t.Parameters = normalizeKeyValues(*patch.Parameters)
		s.autosave(t.RequestID, "parameters", t.Parameters)
	}
	t.UnsavedChanges = true
	return *t, nil
}

// MarkUnsaved sets the unsaved flag of a tab
func (s *Session) MarkUnsaved(id string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return errors.NotFoundf("tab %s not found", id)
	}
	s.tabs[idx].UnsavedChanges = value
	return nil
}

// UpdateTabFromSavedRequest replaces the tab with the saved request's
// fields, re-keys it to the request id and makes it active
func (s *Session) UpdateTabFromSavedRequest(tabID string, def model.RequestDefinition) (Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(tabID)
	if idx < 0 {
		return Tab{}, errors.NotFoundf("tab %s not found", tabID)
	}

	t := s.tabs[idx]
	t.ID = def.ID
	t.Title = def.Name
	t.Method = string(def.Method)
	t.URL = def.URL
	t.Body = def.Body
	t.Headers = def.Headers
	t.Parameters = def.Parameters
	t.RequestID = def.ID
	t.CollectionID = def.CollectionID
	t.UnsavedChanges = false
	s.activeID = def.ID
	s.seedAutosave(def)
	return *t, nil
}

// Tabs returns a copy of the open tabs in order
func (s *Session) Tabs() []Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, *t)
	}
	return out
}

// Tab returns a copy of one tab
func (s *Session) Tab(id string) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx >= 0 {
		return *s.tabs[idx], true
	}
	return Tab{}, false
}

// ActiveTabID returns the active tab id, or "" when no tab is open
func (s *Session) ActiveTabID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Publish stores r as the response to show. It makes Session an
// execution.Sink.
func (s *Session) Publish(r execution.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = r
}

// Response returns the last published result, or nil
func (s *Session) Response() execution.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// FlushAutosave writes any pending autosave for requestID now
func (s *Session) FlushAutosave(requestID string) {
	s.mu.Lock()
	var pending []*debounce.Debouncer
	for _, field := range []string{"headers", "parameters"} {
		if d, ok := s.savers[requestID+"/"+field]; ok {
			pending = append(pending, d)
		}
	}
	s.mu.Unlock()

	for _, d := range pending {
		d.Flush()
	}
}

// FlushAll writes every pending autosave now
func (s *Session) FlushAll() {
	s.mu.Lock()
	pending := make([]*debounce.Debouncer, 0, len(s.savers))
	for _, d := range s.savers {
		pending = append(pending, d)
	}
	s.mu.Unlock()

	for _, d := range pending {
		d.Flush()
	}
}

// Close stops all pending autosaves without running them
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.savers {
		d.Stop()
		delete(s.savers, key)
	}
}

func (s *Session) indexOf(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// autosave schedules a debounced write of one key/value field. Callers
// hold s.mu.
func (s *Session) autosave(requestID, field, value string) {
	if s.store == nil || requestID == "" {
		return
	}

	s.saver(requestID, field).Trigger(value)
}

// seedAutosave records the stored key/value fields of def, so edits that
// leave them unchanged are not written back. Callers hold s.mu.
func (s *Session) seedAutosave(def model.RequestDefinition) {
	if s.store == nil || def.ID == "" {
		return
	}
	s.saver(def.ID, "headers").Seed(normalizeKeyValues(def.Headers))
	s.saver(def.ID, "parameters").Seed(normalizeKeyValues(def.Parameters))
}

// saver returns the debouncer for one field of a request, creating it on
// first use. Callers hold s.mu.
func (s *Session) saver(requestID, field string) *debounce.Debouncer {
	key := requestID + "/" + field
	d, ok := s.savers[key]
	if !ok {
		d = debounce.New(s.delay, func(v string) { s.persist(requestID, field, v) })
		s.savers[key] = d
	}
	return d
}

func (s *Session) persist(requestID, field, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()

	update := model.RequestUpdate{}
	switch field {
	case "headers":
		update.Headers = &value
	case "parameters":
		update.Parameters = &value
	}

	if _, err := s.store.UpdateRequest(ctx, requestID, update); err != nil {
		s.log.Warnw("Autosave failed", logger.FieldRequestID, requestID, "field", field, logger.FieldError, err)
		return
	}
	s.log.Debugw("Autosaved", logger.FieldRequestID, requestID, "field", field)
}

// normalizeKeyValues keeps only the rows that would be sent. Text that is
// not a key/value list is stored as given.
func normalizeKeyValues(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	kvs, err := model.DecodeKeyValues(raw)
	if err != nil {
		return raw
	}
	return kvs.Encode()
}
