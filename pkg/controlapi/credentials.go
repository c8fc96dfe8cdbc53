package controlapi

import (
	"errors"
	"reflect"
	"strings"

	"github.com/bturcanu/monterosa-connector/pkg/types"
	"github.com/go-playground/validator/v10"
)

// Credentials are supplied by the host per invocation. The token is passed
// through verbatim as a bearer token.
type Credentials struct {
	Environment string `json:"environment" validate:"required"`
	AccessToken string `json:"accessToken" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports the first missing credential field as a *types.ValidationError.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return types.Required("credentials." + fieldErrs[0].Field())
	}
	return err
}

// WithDefaults fills empty fields from fallback.
func (c Credentials) WithDefaults(fallback Credentials) Credentials {
	if c.Environment == "" {
		c.Environment = fallback.Environment
	}
	if c.AccessToken == "" {
		c.AccessToken = fallback.AccessToken
	}
	return c
}
