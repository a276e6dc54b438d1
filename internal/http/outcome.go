package http

import (
	"bytes"
	"encoding/json"
)

// Outcome is the normalized result of one dispatch: exactly one of
// *Success or *Failure.
type Outcome interface {
	Duration() int64
	isOutcome()
}

// Success is any response the server returned, whatever its status code
type Success struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       Payload           `json:"data"`
	DurationMs int64             `json:"durationMs"`
	SizeBytes  int64             `json:"sizeBytes"`
}

// Failure is a transport-level error; no response was obtained
type Failure struct {
	ErrorMessage string `json:"errorMessage"`
	DurationMs   int64  `json:"durationMs"`
	Err          error  `json:"-"`
}

func (s *Success) Duration() int64 { return s.DurationMs }
func (f *Failure) Duration() int64 { return f.DurationMs }

func (*Success) isOutcome() {}
func (*Failure) isOutcome() {}

// Payload is a response body: compact JSON when the body parses as JSON,
// otherwise the raw text.
type Payload struct {
	raw  json.RawMessage
	text string
}

// NewPayload classifies body. A JSON string literal is unwrapped to its text.
func NewPayload(body []byte) Payload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return Payload{text: string(body)}
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Payload{text: s}
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Payload{text: string(body)}
	}
	return Payload{raw: json.RawMessage(compact.Bytes())}
}

// TextPayload wraps plain text
func TextPayload(s string) Payload {
	return Payload{text: s}
}

// IsJSON reports whether the payload holds structured JSON
func (p Payload) IsJSON() bool {
	return p.raw != nil
}

// String returns the stored body form: compact JSON or the raw text
func (p Payload) String() string {
	if p.raw != nil {
		return string(p.raw)
	}
	return p.text
}

// MarshalJSON emits structured JSON as-is and text as a JSON string
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(p.text)
}

// UnmarshalJSON accepts any JSON value
func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = NewPayload(data)
	return nil
}

// SerializedSize is the byte length of the payload's JSON serialization
func (p Payload) SerializedSize() int64 {
	data, err := p.MarshalJSON()
	if err != nil {
		return int64(len(p.String()))
	}
	return int64(len(data))
}
