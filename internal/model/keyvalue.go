package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/vedsharma/apibench/internal/errors"
)

// KeyValue is one row of the header or query-parameter editor
type KeyValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// IsActive reports whether the row should be sent: not disabled and not blank
func (kv KeyValue) IsActive() bool {
	if kv.Enabled != nil && !*kv.Enabled {
		return false
	}
	return strings.TrimSpace(kv.Key) != "" || strings.TrimSpace(kv.Value) != ""
}

// KeyValues is the editor's ordered list of rows
type KeyValues []KeyValue

// DecodeKeyValues parses the stored string form of headers or parameters.
// It accepts the editor's JSON array, a plain JSON object, or an empty string.
func DecodeKeyValues(s string) (KeyValues, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KeyValues{}, nil
	}

	var list KeyValues
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		if list == nil {
			list = KeyValues{}
		}
		return list, nil
	}

	var object map[string]string
	if err := json.Unmarshal([]byte(s), &object); err != nil {
		return KeyValues{}, errors.Wrap(errors.Mark(err, errors.ErrInvalidRequest), "decode key/value list")
	}
	keys := make([]string, 0, len(object))
	for k := range object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list = make(KeyValues, 0, len(keys))
	for _, k := range keys {
		list = append(list, KeyValue{Key: k, Value: object[k]})
	}
	return list, nil
}

// Active returns the rows that should be sent, with enabled flags dropped
func (kvs KeyValues) Active() KeyValues {
	out := make(KeyValues, 0, len(kvs))
	for _, kv := range kvs {
		if kv.IsActive() {
			out = append(out, KeyValue{Key: kv.Key, Value: kv.Value})
		}
	}
	return out
}

// Map flattens active rows into a map; later duplicates win
func (kvs KeyValues) Map() map[string]string {
	m := make(map[string]string)
	for _, kv := range kvs.Active() {
		m[strings.TrimSpace(kv.Key)] = kv.Value
	}
	return m
}

// Encode serializes the active rows in the editor's array form
func (kvs KeyValues) Encode() string {
	data, _ := json.Marshal(kvs.Active())
	return string(data)
}

// EncodeHeaderMap serializes a response header map as a JSON object.
// A nil or empty map encodes to the empty string.
func EncodeHeaderMap(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeHeaderMap parses the JSON object form written by EncodeHeaderMap
func DecodeHeaderMap(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return make(map[string]string), nil
	}

	var headers map[string]string
	if err := json.Unmarshal([]byte(s), &headers); err != nil {
		return make(map[string]string), errors.Wrap(err, "failed to parse headers JSON")
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	return headers, nil
}

// ParseKeyValueFlags parses "key:value" (sep ':') or "key=value" (sep '=')
// command-line pairs into editor rows. Pairs without the separator are skipped.
func ParseKeyValueFlags(pairs []string, sep string) KeyValues {
	out := make(KeyValues, 0, len(pairs))
	for _, p := range pairs {
		parts := strings.SplitN(p, sep, 2)
		if len(parts) == 2 {
			out = append(out, KeyValue{
				Key:   strings.TrimSpace(parts[0]),
				Value: strings.TrimSpace(parts[1]),
			})
		}
	}
	return out
}
