package model

import (
	"strings"
	"time"

	"github.com/vedsharma/apibench/internal/errors"
)

// Method is an HTTP method a saved request may use
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// Methods lists every supported method in display order
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// ParseMethod normalizes s and checks it against the supported methods
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Invalidf("unsupported method %q", s)
}

// RequestDefinition is a saved, user-authored HTTP request
type RequestDefinition struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collectionId"`
	Name         string    `json:"name"`
	Method       Method    `json:"method"`
	URL          string    `json:"url"`
	Body         string    `json:"body,omitempty"`
	Headers      string    `json:"headers,omitempty"`
	Parameters   string    `json:"parameters,omitempty"`
	Response     string    `json:"response,omitempty"` // cached last response, set only by a successful run
	UpdatedAt    time.Time `json:"updatedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RequestInput carries the user-editable fields of a request
type RequestInput struct {
	Name       string `json:"name"`
	Method     Method `json:"method"`
	URL        string `json:"url"`
	Body       string `json:"body,omitempty"`
	Headers    string `json:"headers,omitempty"`
	Parameters string `json:"parameters,omitempty"`
}

// Validate checks the fields the save flow requires
func (in RequestInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Invalidf("request name is required")
	}
	if _, err := ParseMethod(string(in.Method)); err != nil {
		return err
	}
	return nil
}

// RequestUpdate is a partial update; nil fields are left untouched
type RequestUpdate struct {
	Name       *string
	Method     *Method
	URL        *string
	Body       *string
	Headers    *string
	Parameters *string
	Response   *string
}

// IsEmpty reports whether the update changes nothing
func (u RequestUpdate) IsEmpty() bool {
	return u.Name == nil && u.Method == nil && u.URL == nil && u.Body == nil &&
		u.Headers == nil && u.Parameters == nil && u.Response == nil
}

// RunRecord is one immutable execution attempt against a RequestDefinition.
// Status 0 means no response was obtained.
type RunRecord struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	Status     int       `json:"status"`
	StatusText *string   `json:"statusText"`
	Headers    string    `json:"headers"`
	Body       string    `json:"body"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Dispatched reports whether the run obtained a response from the server
func (r *RunRecord) Dispatched() bool {
	return r.Status != 0
}

// StatusLabel returns the status text or an empty string
func (r *RunRecord) StatusLabel() string {
	if r.StatusText == nil {
		return ""
	}
	return *r.StatusText
}

// RunFields are the caller-supplied fields of a new RunRecord;
// the store assigns ID and CreatedAt.
type RunFields struct {
	Status     int
	StatusText *string
	Headers    string
	Body       string
	DurationMs int64
}

// Workspace groups collections for one owner
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Collection is a named group of saved requests
type Collection struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Alias maps a short name to a base URL
type Alias struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
