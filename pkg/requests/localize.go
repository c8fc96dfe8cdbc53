package requests

import (
	"fmt"

	"github.com/bturcanu/monterosa-connector/pkg/types"
)

// Localization selects the single locale key every text field is written under.
type Localization string

const (
	LocalizationEn  Localization = "en"
	LocalizationAll Localization = "all"
)

// LocaleMap maps one locale key to text.
type LocaleMap map[string]string

// Localize wraps text under exactly one locale key.
func Localize(text string, mode Localization) LocaleMap {
	return LocaleMap{string(mode): text}
}

// Localization reads the localization setting, defaulting to "all".
func (p Params) Localization() (Localization, error) {
	switch v := Localization(p.String("localization", "")); v {
	case "":
		return LocalizationAll, nil
	case LocalizationEn, LocalizationAll:
		return v, nil
	default:
		return "", &types.ValidationError{Field: "localization", Reason: fmt.Sprintf("must be %q or %q", LocalizationEn, LocalizationAll)}
	}
}

// Field is one {key, values} entry of a settings, question or option list.
type Field struct {
	Key    string    `json:"key"`
	Values LocaleMap `json:"values"`
}

// customFields converts a {"field":[{key,value}]} group into localized fields.
// Entries without a key are skipped.
func customFields(p Params, key string, loc Localization) []Field {
	entries := p.Collection(key, "field")
	out := make([]Field, 0, len(entries))
	for _, e := range entries {
		k := e.String("key", "")
		if k == "" {
			continue
		}
		out = append(out, Field{Key: k, Values: Localize(e.String("value", ""), loc)})
	}
	return out
}

func notANumber(field string) *types.ValidationError {
	return &types.ValidationError{Field: field, Reason: "must be a number"}
}
