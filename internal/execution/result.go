package execution

import (
	"encoding/json"

	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/model"
)

// Result is what Run hands back: exactly one of *Succeeded or *Failed
type Result interface {
	// OK reports whether this is the success variant
	OK() bool
	// RunRecord returns the persisted run, or nil when none was stored
	RunRecord() *model.RunRecord
	isResult()
}

// Succeeded means the request was dispatched, got a response (any status
// code) and its run was recorded.
type Succeeded struct {
	Run     *model.RunRecord
	Outcome *apihttp.Success
}

func (*Succeeded) OK() bool                      { return true }
func (s *Succeeded) RunRecord() *model.RunRecord { return s.Run }
func (*Succeeded) isResult()                     {}

// MarshalJSON writes {"success":true,"requestRun":...,"result":...}
func (s *Succeeded) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success    bool             `json:"success"`
		RequestRun *model.RunRecord `json:"requestRun"`
		Result     *apihttp.Success `json:"result"`
	}{true, s.Run, s.Outcome})
}

// Failed carries a human-readable message. Run is set when a run record
// (the normal one or the fallback) was stored. Err keeps the Go error chain.
type Failed struct {
	Error string
	Err   error
	Run   *model.RunRecord
}

func (*Failed) OK() bool                      { return false }
func (f *Failed) RunRecord() *model.RunRecord { return f.Run }
func (*Failed) isResult()                     {}

// MarshalJSON writes {"success":false,"error":...,"requestRun"?:...}
func (f *Failed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success    bool             `json:"success"`
		Error      string           `json:"error"`
		RequestRun *model.RunRecord `json:"requestRun,omitempty"`
	}{false, f.Error, f.Run})
}

// Sink receives every Result the orchestrator produces
type Sink interface {
	Publish(Result)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Result)

// Publish calls f(r)
func (f SinkFunc) Publish(r Result) { f(r) }
