package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/types"
)

// Element update actions.
const (
	ElementActionUpdate        = "update"
	ElementActionPublish       = "publish"
	ElementActionStop          = "stop"
	ElementActionRevealAnswer  = "reveal_answer"
	ElementActionRevealResults = "reveal_results"
	ElementActionRevoke        = "revoke"
)

// ElementAttributes covers both create and update. Every optional attribute
// is omitted when unset so an update only touches what the caller supplied.
type ElementAttributes struct {
	ContentType                string    `json:"content_type,omitempty"`
	Action                     string    `json:"action,omitempty"`
	StartMode                  string    `json:"start_mode,omitempty"`
	Duration                   *int      `json:"duration,omitempty"`
	Offset                     *int      `json:"offset,omitempty"`
	Question                   *Question `json:"question,omitempty"`
	MaxVotesPerUser            *int      `json:"max_votes_per_user,omitempty"`
	MinOptionsPerVote          *int      `json:"min_options_per_vote,omitempty"`
	MaxOptionsPerVote          *int      `json:"max_options_per_vote,omitempty"`
	RequireVerifiedUser        *bool     `json:"require_verified_user,omitempty"`
	IncludeInLatestResultsFeed *bool     `json:"include_in_latest_results_feed,omitempty"`
	Certification              *bool     `json:"certification,omitempty"`
	RevealResultsMode          string    `json:"reveal_results_mode,omitempty"`
	CorrectOption              *int      `json:"correct_option,omitempty"`
	CustomFields               []Field   `json:"custom_fields,omitempty"`
}

type Question struct {
	Fields  []Field  `json:"fields,omitempty"`
	Options []Option `json:"options,omitempty"`
}

type Option struct {
	Fields []Field `json:"fields"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// CreateElement builds POST /api/v2/elements. With useCustomJson set the
// caller's JSON is sent verbatim and nothing else is read.
func CreateElement(p Params) (controlapi.Request, error) {
	req := controlapi.Request{Method: http.MethodPost, Target: controlapi.TargetAPI, Path: "/api/v2/elements"}
	if p.Bool("useCustomJson", false) {
		body, err := customJSON(p)
		if err != nil {
			return controlapi.Request{}, err
		}
		req.Body = body
		return req, nil
	}

	eventID := p.String("eventId", "")
	if eventID == "" {
		return controlapi.Request{}, types.Required("eventId")
	}
	contentType := p.ContentType()
	if contentType.ContentType == "" {
		return controlapi.Request{}, types.Required("contentType")
	}
	startMode := p.String("startMode", StartModeManual)
	if startMode == "" {
		return controlapi.Request{}, types.Required("startMode")
	}
	duration, err := p.Int("duration", 0)
	if err != nil {
		return controlapi.Request{}, err
	}
	if duration == 0 {
		return controlapi.Request{}, types.Required("duration")
	}
	question := p.Object("question")
	if question == nil || question.String("text", "") == "" {
		return controlapi.Request{}, types.Required("question.text")
	}
	options := p.Collection("options", "option")
	if len(options) == 0 {
		return controlapi.Request{}, &types.ValidationError{Field: "options", Reason: "must contain at least one option"}
	}
	loc, err := p.Localization()
	if err != nil {
		return controlapi.Request{}, err
	}

	attrs := ElementAttributes{
		ContentType: contentType.ContentType,
		StartMode:   startMode,
		Duration:    &duration,
		Question: &Question{
			Fields:  questionFields(question, loc),
			Options: optionList(options, loc),
		},
	}
	if err := applyVotingSettings(&attrs, p.Object("votingSettings")); err != nil {
		return controlapi.Request{}, err
	}

	if contentType.HasCorrectAnswer() {
		idx, err := p.Int("correctOptionIndex", 0)
		if err != nil {
			return controlapi.Request{}, err
		}
		attrs.CorrectOption = &idx
		attrs.CustomFields = []Field{{Key: "correctAnswer", Values: Localize(strconv.Itoa(idx), loc)}}
	}

	if startMode == StartModeTimecode {
		if !p.Has("offset") {
			return controlapi.Request{}, &types.ValidationError{Field: "offset", Reason: "is required for timecode start mode"}
		}
		offset, err := p.Int("offset", 0)
		if err != nil {
			return controlapi.Request{}, err
		}
		attrs.Offset = &offset
	}

	req.Body = Document{Data: Resource{
		Type:          "elements",
		Relationships: map[string]Relationship{"event": relationship("events", eventID)},
		Attributes:    attrs,
	}}
	return req, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Update
// ──────────────────────────────────────────────────────────────────────────────

// UpdateElement builds PATCH /api/v2/elements/{elementId}. Each action sends
// its own attribute subset.
func UpdateElement(p Params) (controlapi.Request, error) {
	elementID := p.String("elementId", "")
	if elementID == "" {
		return controlapi.Request{}, types.Required("elementId")
	}
	req := controlapi.Request{
		Method: http.MethodPatch,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/elements/" + url.PathEscape(elementID),
	}
	if p.Bool("useCustomJson", false) {
		body, err := customJSON(p)
		if err != nil {
			return controlapi.Request{}, err
		}
		req.Body = body
		return req, nil
	}

	var attrs ElementAttributes
	switch action := p.String("action", ""); action {
	case ElementActionPublish, ElementActionStop, ElementActionRevealResults, ElementActionRevoke:
		attrs.Action = action

	case ElementActionRevealAnswer:
		if !p.Has("correctOption") {
			return controlapi.Request{}, types.Required("correctOption")
		}
		idx, err := p.Int("correctOption", 0)
		if err != nil {
			return controlapi.Request{}, err
		}
		attrs.Action = action
		attrs.CorrectOption = &idx

	case ElementActionUpdate:
		loc, err := p.Localization()
		if err != nil {
			return controlapi.Request{}, err
		}
		attrs, err = updateAttributes(p.Object("updateFields"), loc)
		if err != nil {
			return controlapi.Request{}, err
		}

	default:
		return controlapi.Request{}, &types.ValidationError{Field: "action", Reason: fmt.Sprintf("unsupported value %q", action)}
	}

	req.Body = Document{Data: Resource{Type: "elements", ID: elementID, Attributes: attrs}}
	return req, nil
}

// updateAttributes rebuilds only the fields present in updateFields.
func updateAttributes(fields Params, loc Localization) (ElementAttributes, error) {
	var attrs ElementAttributes
	if fields == nil {
		return attrs, nil
	}
	if fields.Truthy("duration") {
		n, err := fields.Int("duration", 0)
		if err != nil {
			return attrs, err
		}
		attrs.Duration = &n
	}
	if fields.Truthy("startMode") {
		attrs.StartMode = fields.String("startMode", "")
	}
	if fields.Truthy("offset") {
		n, err := fields.Int("offset", 0)
		if err != nil {
			return attrs, err
		}
		attrs.Offset = &n
	}

	question := fields.Object("question")
	options := fields.Collection("options", "option")
	if question != nil || len(options) > 0 {
		attrs.Question = &Question{}
		if question != nil {
			attrs.Question.Fields = questionFields(question, loc)
		}
		if len(options) > 0 {
			attrs.Question.Options = optionList(options, loc)
		}
	}

	if err := applyVotingSettings(&attrs, fields.Object("votingSettings")); err != nil {
		return attrs, err
	}
	return attrs, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

// DeleteElement builds DELETE /api/v2/elements/{elementId}.
func DeleteElement(p Params) (controlapi.Request, error) {
	elementID := p.String("elementId", "")
	if elementID == "" {
		return controlapi.Request{}, types.Required("elementId")
	}
	return controlapi.Request{
		Method: http.MethodDelete,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/elements/" + url.PathEscape(elementID),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Shared pieces
// ──────────────────────────────────────────────────────────────────────────────

// questionFields emits text, then image_url, then custom fields.
func questionFields(q Params, loc Localization) []Field {
	fields := []Field{}
	if text := q.String("text", ""); text != "" {
		fields = append(fields, Field{Key: "text", Values: Localize(text, loc)})
	}
	if img := q.String("imageUrl", ""); img != "" {
		fields = append(fields, Field{Key: "image_url", Values: Localize(img, loc)})
	}
	return append(fields, customFields(q, "customFields", loc)...)
}

func optionList(options []Params, loc Localization) []Option {
	out := make([]Option, 0, len(options))
	for _, o := range options {
		fields := []Field{{Key: "text", Values: Localize(o.String("text", ""), loc)}}
		if img := o.String("imageUrl", ""); img != "" {
			fields = append(fields, Field{Key: "image_url", Values: Localize(img, loc)})
		}
		fields = append(fields, customFields(o, "customFields", loc)...)
		out = append(out, Option{Fields: fields})
	}
	return out
}

// applyVotingSettings copies the voting policy. Counts are sent only when
// non-zero; flags whenever present.
func applyVotingSettings(attrs *ElementAttributes, vs Params) error {
	if vs == nil {
		return nil
	}
	counts := []struct {
		key string
		dst **int
	}{
		{"maxVotesPerUser", &attrs.MaxVotesPerUser},
		{"minOptionsPerVote", &attrs.MinOptionsPerVote},
		{"maxOptionsPerVote", &attrs.MaxOptionsPerVote},
	}
	for _, c := range counts {
		if !vs.Truthy(c.key) {
			continue
		}
		n, err := vs.Int(c.key, 0)
		if err != nil {
			return err
		}
		*c.dst = &n
	}

	flags := []struct {
		key string
		dst **bool
	}{
		{"requireVerifiedUser", &attrs.RequireVerifiedUser},
		{"includeInLatestResults", &attrs.IncludeInLatestResultsFeed},
		{"certification", &attrs.Certification},
	}
	for _, f := range flags {
		if !vs.Has(f.key) {
			continue
		}
		b := vs.Bool(f.key, false)
		*f.dst = &b
	}

	if vs.Truthy("revealResultsMode") {
		attrs.RevealResultsMode = vs.String("revealResultsMode", "")
	}
	return nil
}

// customJSON returns the caller-supplied body. A string must parse as JSON;
// an object is re-encoded as is.
func customJSON(p Params) (json.RawMessage, error) {
	switch v := p["customJson"].(type) {
	case string:
		raw := strings.TrimSpace(v)
		var probe any
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return nil, &types.PayloadError{Field: "customJson", Err: err}
		}
		return json.RawMessage(raw), nil
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, &types.PayloadError{Field: "customJson", Err: err}
		}
		return raw, nil
	default:
		return nil, &types.PayloadError{Field: "customJson", Err: errors.New("expected a JSON document")}
	}
}
