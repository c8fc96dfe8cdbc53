package requests

import (
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/types"
)

const (
	StartModeManual   = "manual"
	StartModeTimecode = "timecode"

	EndModeDuration  = "duration"
	EndModeScheduled = "scheduled"

	EventActionStart = "start"
	EventActionStop  = "stop"

	UpdateTypeAttributes = "attributes"
	UpdateTypeAction     = "action"

	defaultEventMinutes = 60
)

// EventAttributes is the attribute set of an event create or attribute update.
type EventAttributes struct {
	Name      string   `json:"name"`
	StartMode string   `json:"start_mode"`
	Duration  int64    `json:"duration"`
	StartAt   *float64 `json:"start_at,omitempty"`
	EndMode   string   `json:"end_mode"`
	Repeat    bool     `json:"repeat,omitempty"`
	RepeatIn  int      `json:"repeat_in,omitempty"`
	Settings  []Field  `json:"settings"`
}

type actionAttributes struct {
	Action string `json:"action"`
}

// CreateEvent builds POST /api/v2/events.
func CreateEvent(p Params) (controlapi.Request, error) {
	name := p.String("eventName", "")
	if name == "" {
		return controlapi.Request{}, types.Required("eventName")
	}
	projectID := p.String("projectID", "")
	if projectID == "" {
		return controlapi.Request{}, types.Required("projectID")
	}

	attrs, err := eventAttributes(p, "eventStartAt")
	if err != nil {
		return controlapi.Request{}, err
	}
	attrs.Name = name
	attrs.EndMode = EndModeDuration

	return controlapi.Request{
		Method: http.MethodPost,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/events",
		Body: Document{Data: Resource{
			Type:          "events",
			Relationships: map[string]Relationship{"project": relationship("projects", projectID)},
			Attributes:    attrs,
		}},
	}, nil
}

// UpdateEvent builds PATCH /api/v2/events/{eventId}. updateType "action"
// sends only {action: start|stop}; "attributes" rebuilds the create shape
// with the optional repeat settings.
func UpdateEvent(p Params) (controlapi.Request, error) {
	eventID := p.String("eventId", "")
	if eventID == "" {
		return controlapi.Request{}, types.Required("eventId")
	}

	var attributes any
	switch updateType := p.String("updateType", UpdateTypeAttributes); updateType {
	case UpdateTypeAction:
		action := p.String("action", "")
		if action != EventActionStart && action != EventActionStop {
			return controlapi.Request{}, &types.ValidationError{
				Field:  "action",
				Reason: fmt.Sprintf("must be %q or %q", EventActionStart, EventActionStop),
			}
		}
		attributes = actionAttributes{Action: action}

	case UpdateTypeAttributes, "":
		attrs, err := eventAttributes(p, firstKey(p, "eventStartAt", "eventStartAtUpdateEvent"))
		if err != nil {
			return controlapi.Request{}, err
		}
		attrs.Name = p.String("eventName", "")
		attrs.EndMode = p.String("endMode", EndModeDuration)
		if attrs.EndMode != EndModeDuration && attrs.EndMode != EndModeScheduled {
			return controlapi.Request{}, &types.ValidationError{
				Field:  "endMode",
				Reason: fmt.Sprintf("must be %q or %q", EndModeDuration, EndModeScheduled),
			}
		}
		if p.Truthy("repeat") {
			attrs.Repeat = true
			if p.Truthy("repeatIn") {
				n, err := p.Int("repeatIn", 0)
				if err != nil {
					return controlapi.Request{}, err
				}
				attrs.RepeatIn = n
			}
		}
		attributes = attrs

	default:
		return controlapi.Request{}, &types.ValidationError{
			Field:  "updateType",
			Reason: fmt.Sprintf("must be %q or %q", UpdateTypeAttributes, UpdateTypeAction),
		}
	}

	return controlapi.Request{
		Method: http.MethodPatch,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/events/" + url.PathEscape(eventID),
		Body:   Document{Data: Resource{Type: "events", ID: eventID, Attributes: attributes}},
	}, nil
}

// eventAttributes fills start mode, duration, start time and settings.
// Manual events take duration in minutes; any other start mode derives it
// in whole seconds from the start and end date-times.
func eventAttributes(p Params, startKey string) (EventAttributes, error) {
	loc, err := p.Localization()
	if err != nil {
		return EventAttributes{}, err
	}
	startMode := p.String("eventStartMode", StartModeManual)
	if startMode == "" {
		startMode = StartModeManual
	}

	minutes, err := p.Float("duration", defaultEventMinutes)
	if err != nil {
		return EventAttributes{}, err
	}
	duration := int64(math.Round(minutes * 60))

	startMs, hasStart, err := dateTimeMillis(p, startKey)
	if err != nil {
		return EventAttributes{}, err
	}

	if startMode != StartModeManual {
		if !hasStart {
			return EventAttributes{}, &types.ValidationError{Field: startKey, Reason: fmt.Sprintf("is required for %s start mode", startMode)}
		}
		endMs, hasEnd, err := dateTimeMillis(p, "eventEndsAt")
		if err != nil {
			return EventAttributes{}, err
		}
		if !hasEnd {
			return EventAttributes{}, &types.ValidationError{Field: "eventEndsAt", Reason: fmt.Sprintf("is required for %s start mode", startMode)}
		}
		if endMs <= startMs {
			return EventAttributes{}, &types.ValidationError{Field: "eventEndsAt", Reason: "must be after the event start time"}
		}
		duration = (endMs - startMs) / 1000
	}

	attrs := EventAttributes{
		StartMode: startMode,
		Duration:  duration,
		Settings:  customFields(p, "customFields", loc),
	}
	if hasStart {
		seconds := float64(startMs) / 1000
		attrs.StartAt = &seconds
	}
	return attrs, nil
}
