package main

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
)

//go:embed contracts/tenantdb.yaml
var tenantDBContract []byte

// loadTenantDBContract parses the embedded OpenAPI document. The contract is
// embedded so the binary validates requests without filesystem access.
func loadTenantDBContract() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(tenantDBContract)
	if err != nil {
		return nil, fmt.Errorf("parse tenantdb contract: %w", err)
	}
	if err := spec.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate tenantdb contract: %w", err)
	}
	return spec, nil
}

// newContractValidator builds the request validation middleware for the admin
// API. The control plane carries no authentication of its own; it is deployed
// behind the surrounding application's gateway.
func newContractValidator(spec *openapi3.T) func(http.Handler) http.Handler {
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	})
}
