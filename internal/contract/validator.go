// Package contract checks request bodies against the Eventify OpenAPI
// document before they are sent, so malformed input fails locally.
package contract

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

//go:embed openapi.yaml
var embeddedDoc []byte

// Document returns the embedded OpenAPI document.
func Document() []byte {
	return append([]byte(nil), embeddedDoc...)
}

// Validator validates requests against an OpenAPI document.
type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// New returns a validator for the embedded document.
func New() (*Validator, error) {
	return Load(embeddedDoc)
}

// Load parses and validates an OpenAPI document.
func Load(data []byte) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	return &Validator{doc: doc, router: router}, nil
}

// Operations lists "METHOD path" for every operation in the document.
func (v *Validator) Operations() []string {
	var ops []string
	for path, item := range v.doc.Paths.Map() {
		for method := range item.Operations() {
			ops = append(ops, strings.ToUpper(method)+" "+path)
		}
	}
	return ops
}

// ValidateRequest checks a JSON body for method and path. Requests for
// operations the document does not describe pass unchecked.
func (v *Validator) ValidateRequest(ctx context.Context, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://eventify.invalid"+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	route, params, err := v.router.FindRoute(req)
	if err != nil {
		var routeErr *routers.RouteError
		if errors.As(err, &routeErr) {
			return nil
		}
		return err
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		return apperrors.Wrap(apperrors.ErrCodeValidation, describe(field, schemaErr.Reason), err)
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return apperrors.Wrap(apperrors.ErrCodeValidation,
				describe(reqErr.Parameter.Name, reqErr.Reason), err)
		}
		return apperrors.Wrap(apperrors.ErrCodeValidation, describe("", reqErr.Reason), err)
	}
	return apperrors.Wrap(apperrors.ErrCodeValidation, "request rejected by contract", err)
}

func describe(field, reason string) string {
	if reason == "" {
		reason = "invalid value"
	}
	if field == "" {
		return reason
	}
	return fmt.Sprintf("%s: %s", field, reason)
}
