package controlapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/types"
)

// Derived-from tags that change which attributes an element carries.
const (
	DerivedTrivia     = "trivia"
	DerivedPrediction = "prediction"
)

// ContentTypeRef identifies an element content type together with the
// family it derives from.
type ContentTypeRef struct {
	ContentType string `json:"content_type"`
	DerivedFrom string `json:"derived_from,omitempty"`
}

// HasCorrectAnswer reports whether elements of this type carry a correct option.
func (r ContentTypeRef) HasCorrectAnswer() bool {
	return r.DerivedFrom == DerivedTrivia || r.DerivedFrom == DerivedPrediction
}

// ParseContentTypeRef accepts the legacy "content_type|derived_from" form.
func ParseContentTypeRef(s string) ContentTypeRef {
	contentType, derivedFrom, _ := strings.Cut(s, "|")
	if derivedFrom == "undefined" {
		derivedFrom = ""
	}
	return ContentTypeRef{ContentType: contentType, DerivedFrom: derivedFrom}
}

// ContentTypeOption is one entry of the element content-type picker.
type ContentTypeOption struct {
	Name  string         `json:"name"`
	Value ContentTypeRef `json:"value"`
}

type projectDocument struct {
	Data struct {
		Relationships struct {
			App struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"app"`
		} `json:"relationships"`
	} `json:"data"`
}

type appDocument struct {
	Data struct {
		Attributes struct {
			SpecURL string `json:"spec_url"`
		} `json:"attributes"`
	} `json:"data"`
}

type elementSpec struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	DerivedFrom string `json:"derived_from"`
}

// ContentTypes resolves the project's app, reads its elements specification
// and lists the element content types it declares. The three calls run in
// order; the first failure aborts the chain.
func (c *Client) ContentTypes(ctx context.Context, projectID string) ([]ContentTypeOption, error) {
	if projectID == "" {
		return nil, types.Required("projectID")
	}
	options, err := c.contentTypes(ctx, projectID)
	if err != nil {
		return nil, NewOperationError("Failed to load element types", err)
	}
	return options, nil
}

func (c *Client) contentTypes(ctx context.Context, projectID string) ([]ContentTypeOption, error) {
	var project projectDocument
	if err := c.GetJSON(ctx, c.apiBase+"/api/v2/projects/"+url.PathEscape(projectID), true, &project); err != nil {
		return nil, err
	}
	appID := project.Data.Relationships.App.Data.ID
	if appID == "" {
		return nil, fmt.Errorf("controlapi.ContentTypes: project %s has no app relationship", projectID)
	}

	var app appDocument
	if err := c.GetJSON(ctx, c.apiBase+"/api/v2/apps/"+url.PathEscape(appID), true, &app); err != nil {
		return nil, err
	}
	specURL := app.Data.Attributes.SpecURL
	if specURL == "" {
		return nil, fmt.Errorf("controlapi.ContentTypes: app %s has no spec_url", appID)
	}
	elementsURL := strings.Replace(specURL, "spec.json", "elements.json", 1)

	var specs []elementSpec
	if err := c.GetJSON(ctx, elementsURL, false, &specs); err != nil {
		return nil, err
	}

	options := make([]ContentTypeOption, 0, len(specs))
	for _, s := range specs {
		options = append(options, ContentTypeOption{
			Name:  optionLabel(s),
			Value: ContentTypeRef{ContentType: s.ContentType, DerivedFrom: s.DerivedFrom},
		})
	}
	return options, nil
}

func optionLabel(s elementSpec) string {
	if s.DerivedFrom == "" {
		return s.Name
	}
	return fmt.Sprintf("%s - (%s)", s.Name, strings.ToUpper(s.DerivedFrom[:1])+s.DerivedFrom[1:])
}
