package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/bturcanu/monterosa-connector/pkg/requests"
)

// confirmation is the synthetic record returned by flows whose upstream
// answer is not useful on its own.
type confirmation struct {
	ID       string          `json:"id"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response,omitempty"`
}

func confirm(idParam, message string, withResponse bool) func(requests.Params, json.RawMessage) (Result, error) {
	return func(p requests.Params, raw json.RawMessage) (Result, error) {
		c := confirmation{ID: p.String(idParam, ""), Message: message}
		if withResponse && len(raw) > 0 {
			c.Response = raw
		}
		out, err := json.Marshal(c)
		if err != nil {
			return Result{}, fmt.Errorf("dispatch.confirm: %w", err)
		}
		return Single(out), nil
	}
}

func standardOperations() []Operation {
	return []Operation{
		// ── events ──────────────────────────────────────────────────────
		{Resource: ResourceEvents, Name: "getEvents", Failure: "Failed to fetch events", Build: requests.GetEvents},
		{Resource: ResourceEvents, Name: "createEvent", Failure: "Failed to create event", Build: requests.CreateEvent},
		{
			Resource: ResourceEvents, Name: "updateEvent", Failure: "Failed to update event",
			Build:   requests.UpdateEvent,
			Respond: confirm("eventId", "Event updated successfully", false),
		},
		{Resource: ResourceEvents, Name: "getEventHistory", Failure: "Failed to fetch event history", Build: requests.GetEventHistory},

		// ── elements ────────────────────────────────────────────────────
		{Resource: ResourceElements, Name: "getElements", Failure: "Failed to fetch elements", Build: requests.GetElements},
		{Resource: ResourceElements, Name: "createElement", Failure: "Failed to create element", Build: requests.CreateElement},
		{
			Resource: ResourceElements, Name: "updateElement", Failure: "Failed to update element",
			Build:   requests.UpdateElement,
			Respond: confirm("elementId", "Element updated successfully", true),
		},
		{
			Resource: ResourceElements, Name: "deleteElement", Failure: "Failed to delete element",
			Build:   requests.DeleteElement,
			Respond: confirm("elementId", "Element deleted successfully", false),
		},

		// ── listings ────────────────────────────────────────────────────
		{Resource: ResourceListings, Name: "getListings", Failure: "Failed to fetch listings", Build: requests.GetListings},

		// ── event templates ─────────────────────────────────────────────
		{Resource: ResourceEventTemplates, Name: "getEventTemplates", Failure: "Failed to fetch event templates", Build: requests.GetEventTemplates},
		{Resource: ResourceEventTemplates, Name: "getEventTemplate", Failure: "Failed to fetch event template", Build: requests.GetEventTemplate},
	}
}
