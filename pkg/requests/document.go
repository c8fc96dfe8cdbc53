package requests

import (
	"strings"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/types"
)

// ──────────────────────────────────────────────────────────────────────────────
// JSON:API envelope
// ──────────────────────────────────────────────────────────────────────────────

// Document is the top-level JSON:API body sent on create and update.
type Document struct {
	Data Resource `json:"data"`
}

type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Attributes    any                     `json:"attributes,omitempty"`
}

type Relationship struct {
	Data ResourceIdentifier `json:"data"`
}

type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func relationship(typ, id string) Relationship {
	return Relationship{Data: ResourceIdentifier{Type: typ, ID: id}}
}

// ──────────────────────────────────────────────────────────────────────────────
// Date-time parameters
// ──────────────────────────────────────────────────────────────────────────────

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// dateTimeMillis reads a date-time parameter as Unix milliseconds. Strings
// without a zone are read as UTC; bare numbers are taken as milliseconds.
// ok is false when the parameter is absent or empty.
func dateTimeMillis(p Params, key string) (ms int64, ok bool, err error) {
	if !p.Has(key) {
		return 0, false, nil
	}
	if s, isString := p[key].(string); isString {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false, nil
		}
		for _, layout := range dateTimeLayouts {
			if t, perr := time.Parse(layout, s); perr == nil {
				return t.UnixMilli(), true, nil
			}
		}
		return 0, false, &types.ValidationError{Field: key, Reason: "is not a valid date-time"}
	}
	f, err := p.Float(key, 0)
	if err != nil {
		return 0, false, &types.ValidationError{Field: key, Reason: "is not a valid date-time"}
	}
	return int64(f), true, nil
}

// firstKey returns the first of keys present with a truthy value.
func firstKey(p Params, keys ...string) string {
	for _, k := range keys {
		if p.Truthy(k) {
			return k
		}
	}
	return keys[0]
}
