package requests

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/types"
)

const (
	defaultPageCount        = 20
	defaultEventsSort       = "-start_time"
	defaultEventsState      = "future"
	defaultElementsState    = "non_scheduled"
	queryParamFilterState   = "filter[state]"
	queryParamPageCount     = "page[count]"
	queryParamPageCursor    = "page[cursor]"
	queryParamOnlyListings  = "filter[only_listings]"
	queryParamLatestResults = "filter[include_in_latest_results]"
)

// GetEvents builds GET /api/v2/projects/{projectID}/events. page[count],
// filter[state] and sort are always sent; the rest only when set.
func GetEvents(p Params) (controlapi.Request, error) {
	projectID := p.String("projectID", "")
	if projectID == "" {
		return controlapi.Request{}, types.Required("projectID")
	}
	pageCount, err := p.Int("pageCount", defaultPageCount)
	if err != nil {
		return controlapi.Request{}, err
	}

	q := url.Values{}
	q.Set(queryParamPageCount, strconv.Itoa(pageCount))
	q.Set(queryParamFilterState, p.String("filterState", defaultEventsState))
	q.Set("sort", p.String("sort", defaultEventsSort))
	if p.Truthy("onlyListings") {
		q.Set(queryParamOnlyListings, "true")
	}
	if include := p.Strings("include", nil); len(include) > 0 {
		q.Set("include", strings.Join(include, ","))
	}
	if cursor := p.String("pageCursor", ""); cursor != "" {
		q.Set(queryParamPageCursor, cursor)
	}

	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/projects/" + url.PathEscape(projectID) + "/events",
		Query:  q,
	}, nil
}

// GetElements builds GET /api/v2/events/{eventId}/elements.
func GetElements(p Params) (controlapi.Request, error) {
	eventID := p.String("eventId", "")
	if eventID == "" {
		return controlapi.Request{}, types.Required("eventId")
	}

	q := url.Values{}
	q.Set(queryParamFilterState, strings.Join(p.Strings("filterState", []string{defaultElementsState}), ","))
	if p.Truthy("filterLatest") {
		q.Set(queryParamLatestResults, "true")
	}
	if p.Truthy("includeStats") {
		q.Set("include", "stats")
	}

	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/events/" + url.PathEscape(eventID) + "/elements",
		Query:  q,
	}, nil
}

// GetListings builds the CDN listings document path for a project.
func GetListings(p Params) (controlapi.Request, error) {
	projectID := p.String("projectID", "")
	if projectID == "" {
		return controlapi.Request{}, types.Required("projectID")
	}
	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetCDN,
		Path:   shardedPath("projects", projectID, "listings.json"),
	}, nil
}

// GetEventHistory builds the CDN history document path for an event.
func GetEventHistory(p Params) (controlapi.Request, error) {
	eventID := p.String("eventId", "")
	if eventID == "" {
		return controlapi.Request{}, types.Required("eventId")
	}
	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetCDN,
		Path:   shardedPath("events", eventID, "history.json"),
	}, nil
}

// GetEventTemplates builds GET /api/v2/projects/{projectID}/event_templates.
func GetEventTemplates(p Params) (controlapi.Request, error) {
	projectID := p.String("projectID", "")
	if projectID == "" {
		return controlapi.Request{}, types.Required("projectID")
	}
	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/projects/" + url.PathEscape(projectID) + "/event_templates",
	}, nil
}

// GetEventTemplate builds GET /api/v2/event_templates/{eventTemplateId}.
func GetEventTemplate(p Params) (controlapi.Request, error) {
	id := p.String("eventTemplateId", "")
	if id == "" {
		return controlapi.Request{}, types.Required("eventTemplateId")
	}
	return controlapi.Request{
		Method: http.MethodGet,
		Target: controlapi.TargetAPI,
		Path:   "/api/v2/event_templates/" + url.PathEscape(id),
	}, nil
}

// shardedPath lays out /{kind}/{id[0:2]}/{id}/{doc}.
func shardedPath(kind, id, doc string) string {
	prefix := id
	if r := []rune(id); len(r) > 2 {
		prefix = string(r[:2])
	}
	escaped := url.PathEscape(id)
	return "/" + kind + "/" + url.PathEscape(prefix) + "/" + escaped + "/" + doc
}
