package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the shape of an operation result.
type Kind int

const (
	KindEmpty Kind = iota
	KindSingle
	KindMany
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMany:
		return "many"
	default:
		return "empty"
	}
}

// Result is what one operation produced upstream.
type Result struct {
	Kind    Kind
	records []json.RawMessage
}

var emptyRecord = json.RawMessage(`{}`)

func Single(record json.RawMessage) Result {
	return Result{Kind: KindSingle, records: []json.RawMessage{record}}
}

func Many(records []json.RawMessage) Result {
	return Result{Kind: KindMany, records: records}
}

func Empty() Result { return Result{Kind: KindEmpty} }

// FromResponse classifies a raw upstream body: an array becomes Many, any
// other JSON value Single. An absent body or a falsy scalar (null, false,
// zero, "") is Empty.
func FromResponse(raw json.RawMessage) (Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || falsyScalar(trimmed) {
		return Empty(), nil
	}
	if trimmed[0] != '[' {
		return Single(json.RawMessage(trimmed)), nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return Result{}, fmt.Errorf("dispatch.FromResponse: %w", err)
	}
	return Many(items), nil
}

func falsyScalar(raw []byte) bool {
	switch raw[0] {
	case '[', '{':
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

// Records flattens the result into host output records. Empty yields a
// single {} record; Many yields one record per element, possibly none.
func (r Result) Records() []json.RawMessage {
	switch r.Kind {
	case KindSingle, KindMany:
		out := make([]json.RawMessage, len(r.records))
		copy(out, r.records)
		return out
	default:
		return []json.RawMessage{emptyRecord}
	}
}
