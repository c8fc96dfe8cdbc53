package controlapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultErrorDescription is used when nothing more specific can be extracted.
const DefaultErrorDescription = "The Monterosa API returned an error."

// UpstreamError is a non-2xx reply from the Control API or the CDN.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// OperationError is what a failed operation surfaces to the host: a short
// message naming the operation plus a normalized description of the cause.
type OperationError struct {
	Message     string
	Description string
	Status      int
	Err         error
}

// NewOperationError normalizes err and attaches the upstream status if any.
func NewOperationError(message string, err error) *OperationError {
	oe := &OperationError{
		Message:     message,
		Description: Normalize(err),
		Err:         err,
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		oe.Status = ue.Status
	}
	return oe
}

func (e *OperationError) Error() string {
	return e.Message + ": " + e.Description
}

func (e *OperationError) Unwrap() error { return e.Err }

// apiErrorBody covers the shapes the API is known to reply with: a JSON:API
// errors array, or a single error / message field.
type apiErrorBody struct {
	Errors  json.RawMessage `json:"errors"`
	Error   any             `json:"error"`
	Message any             `json:"message"`
}

type apiErrorEntry struct {
	Detail any `json:"detail"`
	Title  any `json:"title"`
	Source *struct {
		Pointer any `json:"pointer"`
	} `json:"source"`
}

// Normalize turns any failure from a Control API call into one descriptive
// string. It never panics and always returns a non-empty value.
func Normalize(err error) string {
	return NormalizeWithFallback(err, DefaultErrorDescription)
}

// NormalizeWithFallback is Normalize with a caller-chosen last resort.
func NormalizeWithFallback(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var body apiErrorBody
	var ue *UpstreamError
	if errors.As(err, &ue) && len(ue.Body) > 0 {
		_ = json.Unmarshal(ue.Body, &body)
	}

	if msg := formatErrorEntries(body.Errors); msg != "" {
		return msg
	}
	for _, candidate := range []any{body.Error, body.Message, err.Error()} {
		if msg, ok := normalizeMessage(candidate); ok {
			return msg
		}
	}
	return fallback
}

func formatErrorEntries(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var entries []*apiErrorEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return ""
	}

	formatted := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		detail, hasDetail := normalizeMessage(e.Detail)
		if !hasDetail {
			detail, hasDetail = normalizeMessage(e.Title)
		}
		var pointer string
		var hasPointer bool
		if e.Source != nil {
			pointer, hasPointer = normalizeMessage(e.Source.Pointer)
		}

		switch {
		case hasDetail && hasPointer:
			formatted = append(formatted, pointerField(pointer)+": "+detail)
		case hasDetail:
			formatted = append(formatted, detail)
		case hasPointer:
			formatted = append(formatted, pointer)
		}
	}
	return strings.Join(formatted, ", ")
}

// pointerField takes the last segment of a JSON pointer such as
// "/data/attributes/name".
func pointerField(pointer string) string {
	if i := strings.LastIndex(pointer, "/"); i >= 0 && i < len(pointer)-1 {
		return pointer[i+1:]
	}
	return pointer
}

func normalizeMessage(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
