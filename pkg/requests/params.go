// Package requests turns a host's loosely typed parameter bag into the
// JSON:API bodies and query strings the Monterosa Control API expects.
//
// Builders are pure: they validate required parameters, fail fast with the
// offending field name and never touch the network.
package requests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
)

// Params is the flat parameter bag supplied with one invocation. Nested
// collections arrive as maps and slices exactly as the host serialised them.
type Params map[string]any

// ParseParams decodes a raw params object. Numbers are kept as json.Number
// so integer identifiers and counts survive without float rounding.
func ParseParams(raw json.RawMessage) (Params, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Params{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p Params
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("requests.ParseParams: %w", err)
	}
	if p == nil {
		p = Params{}
	}
	return p, nil
}

// Has reports whether key is present with a non-null value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Truthy mirrors the host's notion of a set value: absent, null, false,
// zero and the empty string are all unset.
func (p Params) Truthy(key string) bool {
	return truthy(p[key])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return true
	case map[string]any:
		return true
	default:
		return true
	}
}

// String returns the value at key as text. Numbers and booleans are
// formatted; anything else falls back to def.
func (p Params) String(key, def string) string {
	switch t := p[key].(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return def
	}
}

// Float returns the numeric value at key. Numeric strings are accepted.
func (p Params) Float(key string, def float64) (float64, error) {
	switch t := p[key].(type) {
	case nil:
		return def, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, notANumber(key)
		}
		return f, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, notANumber(key)
		}
		return f, nil
	default:
		return 0, notANumber(key)
	}
}

// Int is Float truncated towards zero.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool returns the boolean at key; "true"/"false" strings are accepted.
func (p Params) Bool(key string, def bool) bool {
	switch t := p[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Strings returns a list of strings. A comma separated string is split.
func (p Params) Strings(key string, def []string) []string {
	switch t := p[key].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, s := range parts {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}

// Object returns the nested object at key, or nil.
func (p Params) Object(key string) Params {
	switch t := p[key].(type) {
	case map[string]any:
		return Params(t)
	case Params:
		return t
	default:
		return nil
	}
}

// Collection returns the entries of a repeatable group. Both the wrapped
// form {"<inner>": [...]} and a bare array are accepted.
func (p Params) Collection(key, inner string) []Params {
	v := p[key]
	if obj, ok := v.(map[string]any); ok {
		v = obj[inner]
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Params, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Params(m))
		}
	}
	return out
}

// ContentType reads the element content type. A structured
// {"content_type","derived_from"} object under contentType wins; otherwise
// the "content_type|derived_from" string form is parsed from contentType or
// contentTypeParts.
func (p Params) ContentType() controlapi.ContentTypeRef {
	if obj := p.Object("contentType"); obj != nil {
		return controlapi.ContentTypeRef{
			ContentType: obj.String("content_type", ""),
			DerivedFrom: obj.String("derived_from", ""),
		}
	}
	if s := p.String("contentType", ""); s != "" {
		return controlapi.ParseContentTypeRef(s)
	}
	return controlapi.ParseContentTypeRef(p.String("contentTypeParts", ""))
}
